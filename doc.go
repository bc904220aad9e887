// Package medcontent provides a resilient, cached access layer for a
// WordPress-style healthcare content API:
//
//   - Retries with exponential backoff + jitter, per-attempt timeouts
//   - Request de-duplication (merges concurrent identical in-flight requests)
//   - TTL caches with LRU eviction: in-memory, storage backed, Redis
//   - Declarative endpoint registry with path templates and param schemas
//   - Query building with configurable array formats and param sanitization
//   - Middleware chain for cross-cutting concerns (auth, logging, tracing, etc.)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - No package-level singletons: construct a client once, inject it
//   - Safe concurrent use of a single *ContentClient instance
//   - Extensibility via user supplied middleware & pluggable cache / metrics
//
// Typical usage:
//
//	client := medcontent.New(
//	    medcontent.WithBaseURL("https://api.example.com/wp-json/wp/v2"),
//	    medcontent.WithMemoryCache(500),
//	    medcontent.WithMaxAttempts(3),
//	    medcontent.WithAuthToken(token),
//	)
//	defer client.Close()
//
//	doctors, err := client.GetCollection(ctx, "doctors", map[string]any{"per_page": 10})
//
// Validation and configuration errors surface before any network or cache
// access; transport errors are retried per policy and then surface with the
// original status code preserved. Cache write failures are the only error
// class swallowed internally: caching degrades to a pass-through.
package medcontent
