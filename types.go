package medcontent

import (
	"net/http"
	"time"
)

// Request describes one logical HTTP call issued through the Transport.
// It is treated as immutable once handed to the client.
type Request struct {
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Timeout  time.Duration // per-attempt timeout; 0 uses the transport default
	Retry    *RetryPolicy  // per-request override; nil uses the transport default
	DedupKey string        // "" derives a key from method, URL and body
}

// Response is the materialized outcome of a transport call. The body is
// fully read so responses can be cached and shared between coalesced callers.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// RetryCondition determines whether a request should be retried.
type RetryCondition func(resp *Response, err error) bool

// Middleware wraps the transport call for cross-cutting concerns.
type Middleware func(req *Request, next RoundTripper) (*Response, error)

// RoundTripper is the transport hop interface middleware composes over.
type RoundTripper interface {
	RoundTrip(*Request) (*Response, error)
}

// RoundTripperFunc is a helper type for middleware.
type RoundTripperFunc func(*Request) (*Response, error)

func (f RoundTripperFunc) RoundTrip(req *Request) (*Response, error) {
	return f(req)
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// Option represents a client configuration option.
type Option func(*ContentClient)

// Context keys for per-request cache and deduplication control.
type contextKey string

const (
	cacheControlKey contextKey = "medcontent_cache_control"
	dedupControlKey contextKey = "medcontent_dedup_control"
)

// CacheControl holds per-request cache overrides, attached via context.
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}
