package medcontent

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"sync"
)

// flight represents an in-flight request shared between callers.
type flight struct {
	mu      sync.Mutex
	resp    *Response
	err     error
	done    chan struct{}
	waiters int
}

// Coalescer merges concurrent identical in-flight requests so only one
// network operation is live per key at any instant. It is purely a
// coordination structure: results are not retained past the lifetime of one
// in-flight call; persistence is the cache's job.
type Coalescer struct {
	mu      sync.Mutex
	flights map[string]*flight
}

// NewCoalescer returns an empty in-memory request coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{
		flights: make(map[string]*flight),
	}
}

// Do executes fn under the given key, or joins an already-live call for that
// key. All concurrent callers observe the identical result or error. The
// shared return reports whether this caller joined an existing flight.
// A waiter whose context is cancelled unblocks with the context error; the
// flight itself keeps running for the remaining waiters.
func (c *Coalescer) Do(ctx context.Context, key string, fn func() (*Response, error)) (resp *Response, err error, shared bool) {
	c.mu.Lock()
	if f, ok := c.flights[key]; ok {
		f.mu.Lock()
		f.waiters++
		f.mu.Unlock()
		c.mu.Unlock()
		resp, err = f.wait(ctx)
		return resp, err, true
	}

	f := &flight{done: make(chan struct{}), waiters: 1}
	c.flights[key] = f
	c.mu.Unlock()

	resp, err = fn()

	f.mu.Lock()
	f.resp = resp
	f.err = err
	close(f.done)
	f.mu.Unlock()

	// Remove at settlement so the next request for this key issues a fresh
	// network call instead of observing a stale flight.
	c.mu.Lock()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	c.mu.Unlock()

	return resp, err, false
}

// InFlight reports the number of live flights, for introspection and tests.
func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flights)
}

func (f *flight) wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		resp, err := f.resp, f.err
		f.mu.Unlock()
		return resp, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DedupKey builds the canonical key identifying a logical request for
// coalescing: an FNV-64 hash over method, URL and body digest. The URL
// already embeds the serialized query parameters, so identical logical
// requests map to identical keys.
func DedupKey(req *Request) string {
	if req.DedupKey != "" {
		return req.DedupKey
	}

	h := fnv.New64a()
	h.Write([]byte(req.Method))
	h.Write([]byte{':'})
	h.Write([]byte(req.URL))
	if len(req.Body) > 0 {
		sum := sha256.Sum256(req.Body)
		h.Write(sum[:])
	}
	return fmt.Sprintf("%x", h.Sum64())
}
