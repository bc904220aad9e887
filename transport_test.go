package medcontent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testPolicy(maxAttempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Factor:      2.0,
	}
}

func TestTransportRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	transport := NewTransport(TransportConfig{Policy: testPolicy(3)})
	resp, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}

	stats := transport.Stats()
	if stats.RetriedRequests != 2 {
		t.Errorf("RetriedRequests = %d, want 2", stats.RetriedRequests)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", stats.TotalRequests)
	}
	if stats.Successes != 1 {
		t.Errorf("Successes = %d, want 1", stats.Successes)
	}
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	transport := NewTransport(TransportConfig{Policy: testPolicy(3)})
	resp, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Error("response with original status should accompany the error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error type = %T, want *ClientError", err)
	}
	if clientErr.Type != ErrorTypeClient {
		t.Errorf("Type = %q, want %q", clientErr.Type, ErrorTypeClient)
	}
	if clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", clientErr.StatusCode)
	}
}

func TestTransportExhaustedRetriesReturnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := NewTransport(TransportConfig{Policy: testPolicy(2)})
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error type = %T, want *ClientError", err)
	}
	if clientErr.Type != ErrorTypeServer {
		t.Errorf("Type = %q, want %q", clientErr.Type, ErrorTypeServer)
	}
	if clientErr.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", clientErr.Attempt)
	}
	if transport.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", transport.Stats().Failures)
	}
}

func TestTransportNetworkErrorAfterRetries(t *testing.T) {
	// Closed server: every attempt fails at the dial.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	transport := NewTransport(TransportConfig{Policy: testPolicy(2)})
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: url})

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error type = %T, want *ClientError", err)
	}
	if clientErr.Type != ErrorTypeNetwork && clientErr.Type != ErrorTypeTimeout {
		t.Errorf("Type = %q, want network or timeout", clientErr.Type)
	}
	if !IsTransient(err) {
		t.Error("network failures should be transient")
	}
}

func TestTransportContextCancellationStopsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	policy := &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    10 * time.Second,
		Factor:      2.0,
	}
	transport := NewTransport(TransportConfig{Policy: policy})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := transport.Do(ctx, &Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, should abort the backoff wait", elapsed)
	}
}

func TestTransportMiddlewareOrderAndHeaders(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "handler:"+r.Header.Get("X-Trace"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tag := func(name string) Middleware {
		return func(req *Request, next RoundTripper) (*Response, error) {
			seen = append(seen, name)
			if req.Header == nil {
				req.Header = make(http.Header)
			}
			req.Header.Set("X-Trace", req.Header.Get("X-Trace")+name)
			return next.RoundTrip(req)
		}
	}

	transport := NewTransport(TransportConfig{
		Policy:     testPolicy(1),
		Middleware: []Middleware{tag("a"), tag("b")},
	})
	if _, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	want := []string{"a", "b", "handler:ab"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestTransportRateLimiterRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport := NewTransport(TransportConfig{
		Policy:      testPolicy(1),
		RateLimiter: NewRateLimiter(1, time.Hour),
	})

	if _, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL}); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

func TestTransportCircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Hour,
		SuccessThreshold: 1,
	})
	transport := NewTransport(TransportConfig{Policy: testPolicy(1), CircuitBreaker: breaker})

	for i := 0; i < 2; i++ {
		transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	}
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
}

func TestTransportStatsAverageLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport := NewTransport(TransportConfig{Policy: testPolicy(1)})
	for i := 0; i < 3; i++ {
		if _, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}

	stats := transport.Stats()
	if stats.AverageLatency <= 0 {
		t.Error("AverageLatency should be positive after successful requests")
	}
}

// fieldLogger keeps the key/value pairs of each log call for inspection.
type fieldLogger struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (l *fieldLogger) record(keysAndValues []any) {
	fields := make(map[string]any)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	l.mu.Lock()
	l.entries = append(l.entries, fields)
	l.mu.Unlock()
}

func (l *fieldLogger) field(name string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if value, ok := entry[name]; ok {
			return value, true
		}
	}
	return nil, false
}

func (l *fieldLogger) Debug(msg string, keysAndValues ...any) { l.record(keysAndValues) }
func (l *fieldLogger) Info(msg string, keysAndValues ...any)  { l.record(keysAndValues) }
func (l *fieldLogger) Warn(msg string, keysAndValues ...any)  { l.record(keysAndValues) }
func (l *fieldLogger) Error(msg string, keysAndValues ...any) { l.record(keysAndValues) }

func TestTransportAttachesRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger := &fieldLogger{}
	debug := DefaultDebugConfig()
	debug.Enabled = true
	debug.RequestIDGen = func() string { return "req-42" }

	transport := NewTransport(TransportConfig{
		Policy: testPolicy(1),
		Logger: logger,
		Debug:  debug,
	})

	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("err = %v, want *ClientError", err)
	}
	if clientErr.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", clientErr.RequestID)
	}
	if !strings.Contains(clientErr.Error(), "req-42") {
		t.Errorf("error message %q should carry the request id", clientErr.Error())
	}
	if id, ok := logger.field("requestID"); !ok || id != "req-42" {
		t.Errorf("debug log requestID = %v, want req-42", id)
	}
}

func TestTransportSkipsRequestIDWhenDebugOff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var generated atomic.Int32
	debug := DefaultDebugConfig()
	debug.RequestIDGen = func() string {
		generated.Add(1)
		return "unused"
	}

	transport := NewTransport(TransportConfig{Policy: testPolicy(1), Debug: debug})
	_, err := transport.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("err = %v, want *ClientError", err)
	}
	if clientErr.RequestID != "" {
		t.Errorf("RequestID = %q, want empty while debug is off", clientErr.RequestID)
	}
	if generated.Load() != 0 {
		t.Error("generator should not run while debug is off")
	}
}
