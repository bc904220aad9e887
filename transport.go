package medcontent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const latencyWindowSize = 100

// TransportConfig bundles the collaborators a Transport is built from.
// Zero-value fields fall back to defaults.
type TransportConfig struct {
	HTTPClient     *http.Client
	Policy         *RetryPolicy
	Timeout        time.Duration // default per-attempt timeout
	Middleware     []Middleware
	RateLimiter    *RateLimiter
	CircuitBreaker *CircuitBreaker
	Logger         Logger
	Debug          *DebugConfig
	Metrics        *MetricsCollector
}

// Transport issues single network calls and retries them under a policy with
// exponential backoff. It is safe for concurrent use; aggregate statistics are
// kept with atomic counters and a mutex-guarded latency window.
type Transport struct {
	httpClient     *http.Client
	policy         *RetryPolicy
	timeout        time.Duration
	middleware     []Middleware
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	logger         Logger
	debug          *DebugConfig
	metrics        *MetricsCollector

	totalRequests   atomic.Uint64
	successes       atomic.Uint64
	failures        atomic.Uint64
	retriedRequests atomic.Uint64

	latencyMu    sync.Mutex
	latencies    [latencyWindowSize]time.Duration
	latencyCount int
	latencyNext  int
}

// TransportStats is a point-in-time snapshot of transport counters.
type TransportStats struct {
	TotalRequests   uint64
	Successes       uint64
	Failures        uint64
	RetriedRequests uint64
	AverageLatency  time.Duration
}

// NewTransport creates a transport from the given configuration.
func NewTransport(cfg TransportConfig) *Transport {
	t := &Transport{
		httpClient:     cfg.HTTPClient,
		policy:         cfg.Policy,
		timeout:        cfg.Timeout,
		middleware:     cfg.Middleware,
		rateLimiter:    cfg.RateLimiter,
		circuitBreaker: cfg.CircuitBreaker,
		logger:         cfg.Logger,
		debug:          cfg.Debug,
		metrics:        cfg.Metrics,
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{}
	}
	if t.policy == nil {
		t.policy = DefaultRetryPolicy()
	}
	if t.timeout == 0 {
		t.timeout = 30 * time.Second
	}
	if t.logger == nil {
		t.logger = noopLogger{}
	}
	return t
}

// Do executes the request, retrying per policy. The response body is fully
// read so the result can be cached and shared between coalesced callers.
// Responses with status >= 400 return both the response and a *ClientError
// preserving the original status code; 4xx responses never retry.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	endpoint := endpointLabel(req.URL)

	var requestID string
	if t.debug != nil && t.debug.Enabled && t.debug.RequestIDGen != nil {
		requestID = t.debug.RequestIDGen()
	}
	if t.debug != nil && t.debug.Enabled && t.debug.LogRequests {
		t.logger.Debug("starting request",
			"requestID", requestID, "method", req.Method, "url", req.URL, "endpoint", endpoint)
	}

	policy := t.policy
	if req.Retry != nil {
		policy = req.Retry
	}

	t.totalRequests.Add(1)
	if t.metrics != nil {
		t.metrics.RecordRequestStart(req.Method, endpoint)
		defer t.metrics.RecordRequestEnd(req.Method, endpoint)
	}

	var resp *Response
	var err error
	attempts := 0

	for attempt := 1; ; attempt++ {
		attempts = attempt

		if t.rateLimiter != nil && !t.rateLimiter.Allow() {
			if t.metrics != nil {
				t.metrics.RecordError(ErrorTypeRateLimit, req.Method, endpoint)
			}
			t.failures.Add(1)
			return nil, t.newError(ErrorTypeRateLimit, "rate limit exceeded", nil, req, endpoint, requestID, attempt, policy, start)
		}

		if t.circuitBreaker != nil && !t.circuitBreaker.Allow() {
			if t.metrics != nil {
				t.metrics.RecordError(ErrorTypeCircuitOpen, req.Method, endpoint)
			}
			t.failures.Add(1)
			return nil, t.newError(ErrorTypeCircuitOpen, "circuit breaker is open", nil, req, endpoint, requestID, attempt, policy, start)
		}

		resp, err = t.attempt(ctx, req)
		t.recordBreaker(resp, err)

		delay, retry := policy.ShouldRetry(resp, err, attempt)
		if !retry {
			break
		}

		t.retriedRequests.Add(1)
		if t.metrics != nil {
			t.metrics.RecordRetry(req.Method, endpoint, attempt)
		}
		if t.debug != nil && t.debug.Enabled && t.debug.LogRetries {
			t.logger.Info("scheduling retry",
				"requestID", requestID, "method", req.Method, "url", req.URL, "attempt", attempt+1,
				"maxAttempts", policy.MaxAttempts, "backoff", delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			t.failures.Add(1)
			return nil, t.newError(ErrorTypeTimeout, "request cancelled during backoff", ctx.Err(), req, endpoint, requestID, attempt, policy, start)
		}
	}

	duration := time.Since(start)
	t.recordLatency(duration)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if t.metrics != nil {
		t.metrics.RecordRequest(req.Method, endpoint, statusCode, duration)
	}

	if err != nil {
		t.failures.Add(1)
		errType := ErrorTypeNetwork
		msg := "network request failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			errType = ErrorTypeTimeout
			msg = "request timed out"
		}
		if t.metrics != nil {
			t.metrics.RecordError(errType, req.Method, endpoint)
		}
		return nil, t.newError(errType, msg, err, req, endpoint, requestID, attempts, policy, start)
	}

	if resp.StatusCode >= 400 {
		t.failures.Add(1)
		errType := ErrorTypeClient
		msg := "server rejected request"
		if resp.StatusCode >= 500 {
			errType = ErrorTypeServer
			msg = "server error"
		}
		if t.metrics != nil {
			t.metrics.RecordError(errType, req.Method, endpoint)
		}
		clientErr := t.newError(errType, msg, nil, req, endpoint, requestID, attempts, policy, start)
		clientErr.StatusCode = resp.StatusCode
		return resp, clientErr
	}

	t.successes.Add(1)
	return resp, nil
}

// attempt performs one network call with a per-attempt timeout, running the
// middleware chain around it. A timed-out attempt still counts toward the
// policy's attempt budget.
func (t *Transport) attempt(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chain := RoundTripper(RoundTripperFunc(func(r *Request) (*Response, error) {
		return t.send(attemptCtx, r)
	}))
	for i := len(t.middleware) - 1; i >= 0; i-- {
		mw := t.middleware[i]
		next := chain
		chain = RoundTripperFunc(func(r *Request) (*Response, error) {
			return mw(r, next)
		})
	}

	resp, err := chain.RoundTrip(req)
	if err != nil {
		// Surface the per-attempt deadline as such rather than a wrapped url.Error.
		if attemptCtx.Err() != nil {
			return nil, attemptCtx.Err()
		}
		return nil, err
	}
	return resp, nil
}

// send issues the HTTP call and materializes the response body.
func (t *Transport) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       respBody,
		Duration:   time.Since(start),
	}, nil
}

func (t *Transport) recordBreaker(resp *Response, err error) {
	if t.circuitBreaker == nil {
		return
	}
	if err != nil || (resp != nil && resp.StatusCode >= 500) {
		t.circuitBreaker.RecordFailure()
	} else {
		t.circuitBreaker.RecordSuccess()
	}
	if t.metrics != nil {
		t.metrics.RecordCircuitBreakerState("default", t.circuitBreaker.State())
	}
}

func (t *Transport) recordLatency(d time.Duration) {
	t.latencyMu.Lock()
	defer t.latencyMu.Unlock()
	t.latencies[t.latencyNext] = d
	t.latencyNext = (t.latencyNext + 1) % latencyWindowSize
	if t.latencyCount < latencyWindowSize {
		t.latencyCount++
	}
}

// Stats returns a snapshot of the transport counters and the moving average
// latency over the last 100 requests.
func (t *Transport) Stats() TransportStats {
	stats := TransportStats{
		TotalRequests:   t.totalRequests.Load(),
		Successes:       t.successes.Load(),
		Failures:        t.failures.Load(),
		RetriedRequests: t.retriedRequests.Load(),
	}

	t.latencyMu.Lock()
	if t.latencyCount > 0 {
		var sum time.Duration
		for i := 0; i < t.latencyCount; i++ {
			sum += t.latencies[i]
		}
		stats.AverageLatency = sum / time.Duration(t.latencyCount)
	}
	t.latencyMu.Unlock()

	return stats
}

func (t *Transport) newError(errType, message string, cause error, req *Request, endpoint, requestID string, attempt int, policy *RetryPolicy, start time.Time) *ClientError {
	return &ClientError{
		Type:        errType,
		Message:     message,
		Cause:       cause,
		Method:      req.Method,
		URL:         req.URL,
		Endpoint:    endpoint,
		RequestID:   requestID,
		Attempt:     attempt,
		MaxAttempts: policy.MaxAttempts,
		Timestamp:   time.Now(),
		Duration:    time.Since(start),
	}
}

// endpointLabel reduces a URL to a low-cardinality host+path label for
// metrics and logging.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Host == "" && u.Path == "") {
		return "unknown"
	}
	if u.Path == "" {
		return u.Host + "/"
	}
	return u.Host + u.Path
}
