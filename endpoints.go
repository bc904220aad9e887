package medcontent

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// EndpointDescriptor binds a logical resource name to its path template,
// validation schema and caching policy. Descriptors are immutable after
// registration; re-registering a name replaces its descriptor wholesale.
type EndpointDescriptor struct {
	// Path is relative to the client base URL and may contain {token}
	// placeholders resolved by BuildPath.
	Path          string
	Methods       []string
	Cacheable     bool
	RequiresAuth  bool
	CacheTTL      time.Duration // 0 falls back to the client default
	DefaultParams map[string]any
	Schema        Schema
}

var pathTokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Registry maps endpoint names to descriptors. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]EndpointDescriptor
}

// NewRegistry returns an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]EndpointDescriptor)}
}

// Register binds name to descriptor, replacing any previous binding.
func (r *Registry) Register(name string, descriptor EndpointDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = descriptor
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.endpoints[name]
	return ok
}

// Names lists registered endpoint names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the descriptor for name. Lookups of unregistered names fail
// with an error enumerating the registered names, which points call sites at
// configuration mistakes immediately.
func (r *Registry) Get(name string) (EndpointDescriptor, error) {
	r.mu.RLock()
	descriptor, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return EndpointDescriptor{}, &ClientError{
			Type:     ErrorTypeUnknownEndpoint,
			Message:  fmt.Sprintf("endpoint %q is not registered (registered: %s)", name, strings.Join(r.Names(), ", ")),
			Endpoint: name,
		}
	}
	return descriptor, nil
}

// BuildPath substitutes every {token} in the endpoint's path template from
// pathParams. Any token left unresolved fails with an error naming it; this
// happens before any network call is attempted.
func (r *Registry) BuildPath(name string, pathParams map[string]any) (string, error) {
	descriptor, err := r.Get(name)
	if err != nil {
		return "", err
	}

	path := descriptor.Path
	for key, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(formatScalar(value)))
	}

	if matches := pathTokenPattern.FindAllStringSubmatch(path, -1); len(matches) > 0 {
		tokens := make([]string, 0, len(matches))
		for _, m := range matches {
			tokens = append(tokens, m[1])
		}
		return "", &ClientError{
			Type:     ErrorTypeMissingPathParam,
			Message:  fmt.Sprintf("missing path parameter(s) %s for endpoint %q", strings.Join(tokens, ", "), name),
			Endpoint: name,
		}
	}
	return path, nil
}

// DefaultParams returns a copy of the endpoint's default parameters, or nil
// for unregistered names.
func (r *Registry) DefaultParams(name string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptor, ok := r.endpoints[name]
	if !ok || descriptor.DefaultParams == nil {
		return nil
	}
	params := make(map[string]any, len(descriptor.DefaultParams))
	for key, value := range descriptor.DefaultParams {
		params[key] = value
	}
	return params
}

// Schema returns the endpoint's parameter schema, or nil.
func (r *Registry) Schema(name string) Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name].Schema
}

// IsCacheable reports the endpoint's caching policy. Unregistered names are
// not cacheable.
func (r *Registry) IsCacheable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptor, ok := r.endpoints[name]
	return ok && descriptor.Cacheable
}

// RequiresAuth reports whether requests to the endpoint must carry credentials.
func (r *Registry) RequiresAuth(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name].RequiresAuth
}

// collectionSchema is the shared parameter schema for WordPress-style list
// endpoints.
func collectionSchema() Schema {
	return Schema{
		"page":     {OfType(KindNumber), Min(1)},
		"per_page": {OfType(KindNumber), Between(1, 100)},
		"search":   {OfType(KindString)},
		"orderby":  {OfType(KindString), OneOf("date", "id", "title", "slug", "modified", "relevance")},
		"order":    {OfType(KindString), OneOf("asc", "desc")},
		"_embed":   {},
	}
}

func itemSchema() Schema {
	return Schema{
		"_embed": {},
	}
}

// DefaultRegistry ships the healthcare content endpoints the client serves:
// WordPress core resources plus the custom post types of the medical site
// (doctors, departments, services).
func DefaultRegistry() *Registry {
	r := NewRegistry()

	list := func(path string) EndpointDescriptor {
		return EndpointDescriptor{
			Path:          path,
			Methods:       []string{"GET"},
			Cacheable:     true,
			DefaultParams: map[string]any{"per_page": 10, "_embed": true},
			Schema:        collectionSchema(),
		}
	}
	item := func(path string) EndpointDescriptor {
		return EndpointDescriptor{
			Path:          path,
			Methods:       []string{"GET"},
			Cacheable:     true,
			DefaultParams: map[string]any{"_embed": true},
			Schema:        itemSchema(),
		}
	}

	r.Register("posts", list("posts"))
	r.Register("post", item("posts/{id}"))
	r.Register("pages", list("pages"))
	r.Register("page", item("pages/{id}"))
	r.Register("categories", list("categories"))
	r.Register("category", item("categories/{id}"))
	r.Register("media", item("media/{id}"))
	r.Register("doctors", list("doctors"))
	r.Register("doctor", item("doctors/{id}"))
	r.Register("departments", list("departments"))
	r.Register("department", item("departments/{id}"))
	r.Register("services", list("services"))
	r.Register("service", item("services/{id}"))

	search := list("search")
	search.Schema["search"] = []Rule{Required(), OfType(KindString), Min(1)}
	r.Register("search", search)

	return r
}
