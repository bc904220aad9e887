package medcontent

import (
	"sync"
	"time"
)

// CacheEntry wraps a cached value with its TTL and access bookkeeping.
// An entry is expired once now - CreatedAt exceeds TTL; expired entries are
// never served even if still physically present.
type CacheEntry struct {
	Value          []byte        `json:"value"`
	CreatedAt      time.Time     `json:"createdAt"`
	TTL            time.Duration `json:"ttl"`
	AccessCount    int64         `json:"accessCount"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
// A non-positive TTL means the entry never expires.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// CacheStats reports hit rate and entry age bounds for a cache.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Size    int
	Oldest  time.Time
	Newest  time.Time
}

// Cache is a bounded key -> value store with TTL. Implementations must be
// safe for concurrent use and must never serve an expired entry.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Has(key string) bool
	Delete(key string) bool
	Clear()
	// Cleanup removes expired entries and returns how many this call removed.
	Cleanup() int
	Keys() []string
	Size() int
	Stats() CacheStats
	Close() error
}

// MemoryCache is an in-memory Cache with LRU eviction under capacity pressure
// and a periodic background sweep of expired entries. The sweep goroutine is
// started at construction and stopped deterministically by Close.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	maxSize int
	hits    uint64
	misses  uint64

	stop      chan struct{}
	closeOnce sync.Once
}

const (
	// DefaultMaxSize bounds a memory cache when no explicit size is given.
	DefaultMaxSize = 1000
	// DefaultCleanupInterval is the period of the background expiry sweep.
	DefaultCleanupInterval = time.Minute
)

// NewMemoryCache creates a memory cache holding at most maxSize entries,
// sweeping expired entries every cleanupInterval. Non-positive arguments
// fall back to DefaultMaxSize / DefaultCleanupInterval; a negative
// cleanupInterval disables the sweep entirely (expiry is then lazy).
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if cleanupInterval == 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	c := &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.sweep(cleanupInterval)
	}
	return c
}

// Get returns the value for key, or (nil, false) for absent or expired
// entries. Reading an expired entry evicts it. A hit updates the entry's
// access count and recency.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := time.Now()
	if entry.Expired(now) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	c.hits++
	return entry.Value, true
}

// Set stores value under key with the given TTL. Inserting a new key at
// capacity first evicts the least-recently-used entry so size never exceeds
// maxSize.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = &CacheEntry{
		Value:          value,
		CreatedAt:      now,
		TTL:            ttl,
		LastAccessedAt: now,
	}
}

// Has reports whether a live (unexpired) entry exists for key without
// counting a hit or refreshing recency.
func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if entry.Expired(time.Now()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Delete removes key, reporting whether an entry was present.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Cleanup removes all expired entries and returns how many were removed by
// this call.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Keys lists the keys of live entries.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if !entry.Expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Size returns the number of physically present entries.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports hit rate, size and entry age bounds.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	for _, entry := range c.entries {
		if stats.Oldest.IsZero() || entry.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.Newest) {
			stats.Newest = entry.CreatedAt
		}
	}
	return stats
}

// Close stops the sweep goroutine and releases all entries. Safe to call
// more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	c.Clear()
	return nil
}

// evictLRU removes the entry with the oldest LastAccessedAt. Ties break
// arbitrarily. Caller holds the lock.
func (c *MemoryCache) evictLRU() {
	var victim string
	var oldest time.Time
	for key, entry := range c.entries {
		if victim == "" || entry.LastAccessedAt.Before(oldest) {
			victim = key
			oldest = entry.LastAccessedAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// sweep removes expired entries every interval so write-only workloads do
// not grow unbounded between reads.
func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}
