package medcontent

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithBaseURL sets the API root every relative path is resolved against.
func WithBaseURL(baseURL string) Option {
	return func(c *ContentClient) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *ContentClient) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ContentClient) {
		c.httpClient = client
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(c *ContentClient) {
		c.retryPolicy = policy
	}
}

// WithMaxAttempts sets the total attempt count, first try included.
func WithMaxAttempts(attempts int) Option {
	return func(c *ContentClient) {
		c.retryPolicy.MaxAttempts = attempts
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *ContentClient) {
		c.retryPolicy.BaseDelay = delay
	}
}

// WithMaxDelay caps the computed backoff delay.
func WithMaxDelay(delay time.Duration) Option {
	return func(c *ContentClient) {
		c.retryPolicy.MaxDelay = delay
	}
}

// WithBackoffFactor sets the exponential growth factor.
func WithBackoffFactor(factor float64) Option {
	return func(c *ContentClient) {
		c.retryPolicy.Factor = factor
	}
}

// WithJitter sets the backoff jitter fraction in [0, 1].
func WithJitter(jitter float64) Option {
	return func(c *ContentClient) {
		c.retryPolicy.Jitter = jitter
	}
}

// WithRetryCondition replaces the default retry decision.
func WithRetryCondition(condition RetryCondition) Option {
	return func(c *ContentClient) {
		c.retryPolicy.Condition = condition
	}
}

// WithCache installs a cache implementation.
func WithCache(cache Cache) Option {
	return func(c *ContentClient) {
		c.cache = cache
		c.cacheSet = true
	}
}

// WithMemoryCache installs an in-memory LRU cache with the given capacity
// and the default sweep interval.
func WithMemoryCache(maxSize int) Option {
	return func(c *ContentClient) {
		c.cache = NewMemoryCache(maxSize, DefaultCleanupInterval)
		c.cacheSet = true
	}
}

// WithStorageCache installs a persistent cache backed by the given storage.
func WithStorageCache(storage Storage, logger Logger) Option {
	return func(c *ContentClient) {
		c.cache = NewStorageCache(storage, DefaultStoragePrefix, logger)
		c.cacheSet = true
	}
}

// WithoutCache disables caching entirely.
func WithoutCache() Option {
	return func(c *ContentClient) {
		c.cache = nil
		c.cacheSet = true
	}
}

// WithDefaultCacheTTL sets the TTL cached responses receive when neither the
// call nor the endpoint specifies one.
func WithDefaultCacheTTL(ttl time.Duration) Option {
	return func(c *ContentClient) {
		c.cacheTTL = ttl
	}
}

// WithoutDedup disables request coalescing for all calls.
func WithoutDedup() Option {
	return func(c *ContentClient) {
		c.dedupEnabled = false
	}
}

// WithArrayFormat selects how slice parameters are serialized.
func WithArrayFormat(format ArrayFormat) Option {
	return func(c *ContentClient) {
		c.arrayFormat = format
	}
}

// WithRegistry replaces the default endpoint registry.
func WithRegistry(registry *Registry) Option {
	return func(c *ContentClient) {
		c.registry = registry
	}
}

// WithEndpoint registers (or overrides) a single endpoint.
func WithEndpoint(name string, descriptor EndpointDescriptor) Option {
	return func(c *ContentClient) {
		c.registry.Register(name, descriptor)
	}
}

// WithAuthToken sends "Authorization: Bearer <token>" on every request.
func WithAuthToken(token string) Option {
	return func(c *ContentClient) {
		c.authToken = token
	}
}

// WithBasicAuth sends HTTP basic credentials on every request. Ignored when
// a bearer token is also configured.
func WithBasicAuth(username, password string) Option {
	return func(c *ContentClient) {
		c.basicUser = username
		c.basicPass = password
	}
}

// WithHeader adds a static header to every request.
func WithHeader(name, value string) Option {
	return func(c *ContentClient) {
		c.headers[name] = value
	}
}

// WithMiddleware appends a middleware to the transport chain. Middleware run
// in registration order, outermost first.
func WithMiddleware(middleware Middleware) Option {
	return func(c *ContentClient) {
		c.middleware = append(c.middleware, middleware)
	}
}

// WithRateLimiter throttles outbound requests with a token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *ContentClient) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker protects the upstream with a failure-threshold breaker.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *ContentClient) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(c *ContentClient) {
		c.logger = logger
	}
}

// WithDebug enables debug logging of requests, retries, cache and dedup
// activity.
func WithDebug() Option {
	return func(c *ContentClient) {
		c.debug = &DebugConfig{
			Enabled:      true,
			LogRequests:  true,
			LogRetries:   true,
			LogCache:     true,
			LogDedup:     true,
			RequestIDGen: c.debug.RequestIDGen,
		}
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *ContentClient) {
		c.debug = config
	}
}

// WithRequestIDGenerator overrides request id generation for debug logs.
func WithRequestIDGenerator(generator func() string) Option {
	return func(c *ContentClient) {
		c.debug.RequestIDGen = generator
	}
}

// WithMetrics enables prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *ContentClient) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector installs a pre-built collector, e.g. one bound to a
// custom prometheus registry.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *ContentClient) {
		c.metrics = collector
	}
}

// ValidateConfiguration checks the assembled configuration and returns a
// single validation error listing every problem found.
func (c *ContentClient) ValidateConfiguration() error {
	var problems []string

	if strings.TrimSpace(c.baseURL) == "" {
		problems = append(problems, "base URL must not be empty")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.retryPolicy != nil {
		if c.retryPolicy.MaxAttempts < 1 {
			problems = append(problems, "max attempts must be at least 1")
		}
		if c.retryPolicy.BaseDelay < 0 {
			problems = append(problems, "base delay must not be negative")
		}
		if c.retryPolicy.MaxDelay > 0 && c.retryPolicy.MaxDelay < c.retryPolicy.BaseDelay {
			problems = append(problems, "max delay must not be below base delay")
		}
		if c.retryPolicy.Factor < 1 {
			problems = append(problems, "backoff factor must be at least 1")
		}
		if c.retryPolicy.Jitter < 0 || c.retryPolicy.Jitter > 1 {
			problems = append(problems, "jitter must be between 0 and 1")
		}
	}
	if c.cacheTTL < 0 {
		problems = append(problems, "default cache TTL must not be negative")
	}
	if c.registry == nil {
		problems = append(problems, "endpoint registry must not be nil")
	}

	if len(problems) == 0 {
		return nil
	}
	return &ClientError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")),
	}
}
