package medcontent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ContentClient is the façade every content screen talks to. It validates
// parameters against the endpoint registry, builds URLs, consults the cache,
// and delegates misses to the coalesced, retrying transport. Create one at
// application start, pass it by reference, and Close it on shutdown; it is
// safe for concurrent use.
type ContentClient struct {
	baseURL     string
	timeout     time.Duration
	retryPolicy *RetryPolicy

	httpClient     *http.Client
	middleware     []Middleware
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker

	cache        Cache
	cacheSet     bool // a cache option was applied, including WithoutCache
	cacheTTL     time.Duration
	dedupEnabled bool
	arrayFormat  ArrayFormat

	registry *Registry

	authToken string
	basicUser string
	basicPass string
	headers   map[string]string

	logger  Logger
	debug   *DebugConfig
	metrics *MetricsCollector

	transport *Transport
	coalescer *Coalescer

	validationError error
}

// Collection is a page of content items plus the pagination metadata parsed
// from the WordPress response headers.
type Collection struct {
	Items       []json.RawMessage `json:"items"`
	Total       int               `json:"total"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	HasNextPage bool              `json:"hasNextPage"`
	HasPrevPage bool              `json:"hasPrevPage"`
}

// New constructs a ContentClient using the provided functional options.
// Unless a cache option is given, responses are cached in an in-memory
// LRU cache; WithoutCache disables caching entirely. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *ContentClient {
	c := &ContentClient{
		timeout:      30 * time.Second,
		retryPolicy:  DefaultRetryPolicy(),
		cacheTTL:     5 * time.Minute,
		dedupEnabled: true,
		arrayFormat:  ArrayBrackets,
		registry:     DefaultRegistry(),
		headers:      make(map[string]string),
		logger:       noopLogger{},
		debug:        DefaultDebugConfig(),
		coalescer:    NewCoalescer(),
	}

	for _, option := range options {
		option(c)
	}

	// Caching is on unless an option said otherwise.
	if !c.cacheSet {
		c.cache = NewMemoryCache(DefaultMaxSize, DefaultCleanupInterval)
	}

	c.transport = NewTransport(TransportConfig{
		HTTPClient:     c.httpClient,
		Policy:         c.retryPolicy,
		Timeout:        c.timeout,
		Middleware:     c.middleware,
		RateLimiter:    c.rateLimiter,
		CircuitBreaker: c.circuitBreaker,
		Logger:         c.logger,
		Debug:          c.debug,
		Metrics:        c.metrics,
	})

	if err := c.ValidateConfiguration(); err != nil {
		c.validationError = err
	}
	return c
}

// Get fetches a single resource. endpoint is either a registered endpoint
// name or a literal path relative to the base URL. The raw JSON body is
// returned; use Decode or Normalize to shape it.
func (c *ContentClient) Get(ctx context.Context, endpoint string, params map[string]any) (json.RawMessage, error) {
	return c.get(ctx, endpoint, nil, params)
}

// GetByID resolves the endpoint's {id} path parameter and fetches that
// resource.
func (c *ContentClient) GetByID(ctx context.Context, endpoint string, id int64, params map[string]any) (json.RawMessage, error) {
	return c.get(ctx, endpoint, map[string]any{"id": id}, params)
}

func (c *ContentClient) get(ctx context.Context, endpoint string, pathParams, params map[string]any) (json.RawMessage, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	target, err := c.prepare(endpoint, pathParams, params)
	if err != nil {
		return nil, err
	}

	cacheKey := "GET:" + target.url
	if c.cacheUsable(ctx, target) {
		if value, ok := c.cache.Get(cacheKey); ok {
			c.recordCacheHit(target)
			return value, nil
		}
		c.recordCacheMiss(target)
	}

	resp, err := c.execute(ctx, target)
	if err != nil {
		c.logFailure(target, err)
		return nil, err
	}

	if c.cacheUsable(ctx, target) {
		c.cache.Set(cacheKey, resp.Body, c.resolveTTL(ctx, target))
		c.recordCacheSize()
	}
	return resp.Body, nil
}

// GetCollection fetches a list endpoint and parses pagination metadata from
// the x-wp-total / x-wp-totalpages response headers. A missing total is
// treated as 0, missing total pages as 1; the current page defaults to the
// requested page parameter or 1.
func (c *ContentClient) GetCollection(ctx context.Context, endpoint string, params map[string]any) (*Collection, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	target, err := c.prepare(endpoint, nil, params)
	if err != nil {
		return nil, err
	}

	cacheKey := "GET:" + target.url
	if c.cacheUsable(ctx, target) {
		if value, ok := c.cache.Get(cacheKey); ok {
			var collection Collection
			if err := json.Unmarshal(value, &collection); err == nil {
				c.recordCacheHit(target)
				return &collection, nil
			}
			// A foreign shape under this key is useless here; refetch.
			c.cache.Delete(cacheKey)
		}
		c.recordCacheMiss(target)
	}

	resp, err := c.execute(ctx, target)
	if err != nil {
		c.logFailure(target, err)
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, &ClientError{
			Type:     ErrorTypeClient,
			Message:  "collection response is not a JSON array",
			Cause:    err,
			Method:   http.MethodGet,
			URL:      target.url,
			Endpoint: target.name,
		}
	}

	collection := &Collection{
		Items:       items,
		Total:       headerInt(resp.Header, "x-wp-total", 0),
		TotalPages:  headerInt(resp.Header, "x-wp-totalpages", 1),
		CurrentPage: requestedPage(target.params),
	}
	collection.HasNextPage = collection.CurrentPage < collection.TotalPages
	collection.HasPrevPage = collection.CurrentPage > 1

	if c.cacheUsable(ctx, target) {
		if envelope, err := json.Marshal(collection); err == nil {
			c.cache.Set(cacheKey, envelope, c.resolveTTL(ctx, target))
			c.recordCacheSize()
		}
	}
	return collection, nil
}

// Search queries the search endpoint.
func (c *ContentClient) Search(ctx context.Context, query string, params map[string]any) (*Collection, error) {
	merged := make(map[string]any, len(params)+1)
	for key, value := range params {
		merged[key] = value
	}
	merged["search"] = query
	return c.GetCollection(ctx, "search", merged)
}

// InvalidateCache recomputes the cache key a read for endpoint+params would
// use and deletes it. If the key cannot be reconstructed (invalid params, an
// unresolved path template), the entire cache is cleared instead of silently
// doing nothing: staleness is worse than a cold cache.
func (c *ContentClient) InvalidateCache(endpoint string, params map[string]any) error {
	if c.cache == nil {
		return nil
	}

	target, err := c.prepare(endpoint, nil, params)
	if err != nil {
		c.logger.Warn("cache invalidation falling back to full clear",
			"endpoint", endpoint, "error", err.Error())
		c.cache.Clear()
		return nil
	}

	c.cache.Delete("GET:" + target.url)
	c.recordCacheSize()
	return nil
}

// Registry exposes the endpoint registry for custom registrations.
func (c *ContentClient) Registry() *Registry {
	return c.registry
}

// Cache exposes the configured cache, or nil when caching is disabled.
func (c *ContentClient) Cache() Cache {
	return c.cache
}

// TransportStats snapshots the transport counters.
func (c *ContentClient) TransportStats() TransportStats {
	return c.transport.Stats()
}

// IsValid reports whether configuration validation passed at construction.
func (c *ContentClient) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *ContentClient) ValidationError() error {
	return c.validationError
}

// Close releases the cache and its background sweep.
func (c *ContentClient) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// target carries everything prepare derived for one call.
type target struct {
	name       string // registered endpoint name, or "" for literal paths
	registered bool
	descriptor EndpointDescriptor
	url        string
	params     map[string]any
}

// prepare merges defaults, validates, resolves the path template and builds
// the final URL. All failures here happen before any cache or network access.
func (c *ContentClient) prepare(endpoint string, pathParams, params map[string]any) (*target, error) {
	t := &target{name: endpoint}

	var path string
	if c.registry.Has(endpoint) {
		descriptor, err := c.registry.Get(endpoint)
		if err != nil {
			return nil, err
		}
		t.registered = true
		t.descriptor = descriptor

		path, err = c.registry.BuildPath(endpoint, pathParams)
		if err != nil {
			return nil, err
		}

		if descriptor.RequiresAuth && c.authToken == "" && c.basicUser == "" {
			return nil, &ClientError{
				Type:     ErrorTypeValidation,
				Message:  fmt.Sprintf("endpoint %q requires authentication but no credentials are configured", endpoint),
				Endpoint: endpoint,
			}
		}
	} else {
		if len(pathParams) > 0 {
			// Path parameters only make sense against a registered template.
			if _, err := c.registry.Get(endpoint); err != nil {
				return nil, err
			}
		}
		path = endpoint
	}

	merged := c.registry.DefaultParams(t.name)
	if merged == nil {
		merged = make(map[string]any, len(params))
	}
	for key, value := range params {
		merged[key] = value
	}

	if schema := c.registry.Schema(t.name); len(schema) > 0 {
		result := ValidateParams(merged, schema)
		if !result.Valid {
			return nil, &ClientError{
				Type:     ErrorTypeValidation,
				Message:  "invalid request parameters",
				Endpoint: endpoint,
				Fields:   result.Errors,
			}
		}
		merged = result.Sanitized
	}
	merged = SanitizeParams(merged)

	t.params = merged
	t.url = BuildURL(c.baseURL, path, merged, &BuildOptions{ArrayFormat: c.arrayFormat})
	return t, nil
}

// execute runs the (possibly coalesced) transport call for a prepared target.
func (c *ContentClient) execute(ctx context.Context, t *target) (*Response, error) {
	req := &Request{
		Method: http.MethodGet,
		URL:    t.url,
		Header: c.buildHeaders(),
	}

	if !c.dedupEnabled || dedupDisabled(ctx) {
		return c.transport.Do(ctx, req)
	}

	resp, err, shared := c.coalescer.Do(ctx, DedupKey(req), func() (*Response, error) {
		return c.transport.Do(ctx, req)
	})
	if shared {
		c.metrics.RecordDedupHit(req.Method, endpointLabel(req.URL))
		if c.debug != nil && c.debug.Enabled && c.debug.LogDedup {
			c.logger.Debug("request merged into in-flight call", "url", req.URL)
		}
	}
	return resp, err
}

func (c *ContentClient) buildHeaders() http.Header {
	header := make(http.Header, len(c.headers)+2)
	header.Set("Accept", "application/json")
	for key, value := range c.headers {
		header.Set(key, value)
	}
	if c.authToken != "" {
		header.Set("Authorization", "Bearer "+c.authToken)
	} else if c.basicUser != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(c.basicUser + ":" + c.basicPass))
		header.Set("Authorization", "Basic "+credentials)
	}
	return header
}

// cacheUsable reports whether this call should consult the cache: a cache is
// configured, the endpoint is cacheable (literal paths default to cacheable),
// and the per-request context override does not disable it.
func (c *ContentClient) cacheUsable(ctx context.Context, t *target) bool {
	if c.cache == nil {
		return false
	}
	if control := cacheControlFrom(ctx); control != nil {
		return control.Enabled
	}
	if t.registered {
		return t.descriptor.Cacheable
	}
	return true
}

// resolveTTL picks the call override, then the endpoint default, then the
// client default.
func (c *ContentClient) resolveTTL(ctx context.Context, t *target) time.Duration {
	if control := cacheControlFrom(ctx); control != nil && control.TTL > 0 {
		return control.TTL
	}
	if t.registered && t.descriptor.CacheTTL > 0 {
		return t.descriptor.CacheTTL
	}
	return c.cacheTTL
}

func (c *ContentClient) recordCacheHit(t *target) {
	c.metrics.RecordCacheHit(http.MethodGet, endpointLabel(t.url))
	if c.debug != nil && c.debug.Enabled && c.debug.LogCache {
		c.logger.Debug("cache hit", "url", t.url)
	}
}

func (c *ContentClient) recordCacheMiss(t *target) {
	c.metrics.RecordCacheMiss(http.MethodGet, endpointLabel(t.url))
	if c.debug != nil && c.debug.Enabled && c.debug.LogCache {
		c.logger.Debug("cache miss", "url", t.url)
	}
}

func (c *ContentClient) recordCacheSize() {
	if c.metrics != nil && c.cache != nil {
		c.metrics.RecordCacheSize("default", c.cache.Size())
	}
}

func (c *ContentClient) logFailure(t *target, err error) {
	status := 0
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		status = clientErr.StatusCode
	}
	c.logger.Error("request failed",
		"method", http.MethodGet, "url", t.url, "status", status, "error", err.Error())
}

// WithCacheDisabled disables cache reads and writes for calls made with the
// returned context.
func WithCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Enabled: false})
}

// WithCacheTTL forces caching with the given TTL for calls made with the
// returned context.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Enabled: true, TTL: ttl})
}

// WithDedupDisabled bypasses request coalescing for calls made with the
// returned context.
func WithDedupDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, dedupControlKey, true)
}

func cacheControlFrom(ctx context.Context) *CacheControl {
	control, _ := ctx.Value(cacheControlKey).(*CacheControl)
	return control
}

func dedupDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(dedupControlKey).(bool)
	return disabled
}

// Decode unmarshals a raw result into a typed value.
func Decode[T any](raw json.RawMessage) (T, error) {
	var value T
	err := json.Unmarshal(raw, &value)
	return value, err
}

func headerInt(header http.Header, name string, fallback int) int {
	value := header.Get(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func requestedPage(params map[string]any) int {
	if raw, ok := params["page"]; ok {
		if n, ok := asFloat(raw); ok && n >= 1 {
			return int(n)
		}
	}
	return 1
}
