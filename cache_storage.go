package medcontent

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned by Storage implementations when a write would
// exceed the store's size budget.
var ErrQuotaExceeded = errors.New("medcontent: storage quota exceeded")

// Storage is a synchronous key/value store a StorageCache persists into.
// SetItem may fail (quota); reads never do.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string)
	Keys() []string
}

// FileStorage persists items as one file per key under a directory, so
// cached entries survive process restarts. An optional byte quota makes
// SetItem fail with ErrQuotaExceeded instead of growing without bound.
type FileStorage struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
}

// NewFileStorage creates the directory if needed. maxBytes <= 0 disables the
// quota.
func NewFileStorage(dir string, maxBytes int64) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir, maxBytes: maxBytes}, nil
}

func (s *FileStorage) path(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(key)) + ".json"
	return filepath.Join(s.dir, name)
}

func (s *FileStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *FileStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 && s.usedLocked()+int64(len(value)) > s.maxBytes {
		return ErrQuotaExceeded
	}

	fp := s.path(key)
	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, fp)
}

func (s *FileStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path(key))
}

func (s *FileStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == e.Name() {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			continue
		}
		keys = append(keys, string(decoded))
	}
	return keys
}

func (s *FileStorage) usedLocked() int64 {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	var used int64
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			used += info.Size()
		}
	}
	return used
}

// StorageCache implements Cache over a Storage with a namespacing prefix.
// Expiry is lazy only: the store has no timer hooks, so Get/Has delete
// expired keys on access. Write failures are logged and swallowed; caching
// is best-effort and must never fail the calling request.
type StorageCache struct {
	storage Storage
	prefix  string
	logger  Logger

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// DefaultStoragePrefix namespaces cache keys so unrelated data in a shared
// store is never touched.
const DefaultStoragePrefix = "medcontent:"

// NewStorageCache wraps storage under the given namespace prefix. An empty
// prefix uses DefaultStoragePrefix; a nil logger silences write-failure logs.
func NewStorageCache(storage Storage, prefix string, logger Logger) *StorageCache {
	if prefix == "" {
		prefix = DefaultStoragePrefix
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &StorageCache{storage: storage, prefix: prefix, logger: logger}
}

func (c *StorageCache) load(key string) (*CacheEntry, bool) {
	raw, ok := c.storage.GetItem(c.prefix + key)
	if !ok {
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt entries are removed rather than served.
		c.storage.RemoveItem(c.prefix + key)
		return nil, false
	}
	return &entry, true
}

func (c *StorageCache) store(key string, entry *CacheEntry) {
	raw, err := json.Marshal(entry)
	if err == nil {
		err = c.storage.SetItem(c.prefix+key, string(raw))
	}
	if err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err.Error())
	}
}

func (c *StorageCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.load(key)
	if !ok {
		c.misses++
		return nil, false
	}

	now := time.Now()
	if entry.Expired(now) {
		c.storage.RemoveItem(c.prefix + key)
		c.misses++
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	c.store(key, entry)
	c.hits++
	return entry.Value, true
}

func (c *StorageCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.store(key, &CacheEntry{
		Value:          value,
		CreatedAt:      now,
		TTL:            ttl,
		LastAccessedAt: now,
	})
}

func (c *StorageCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLocked(key)
}

func (c *StorageCache) hasLocked(key string) bool {
	entry, ok := c.load(key)
	if !ok {
		return false
	}
	if entry.Expired(time.Now()) {
		c.storage.RemoveItem(c.prefix + key)
		return false
	}
	return true
}

func (c *StorageCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.storage.GetItem(c.prefix + key)
	c.storage.RemoveItem(c.prefix + key)
	return ok
}

func (c *StorageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.namespacedKeysLocked() {
		c.storage.RemoveItem(c.prefix + key)
	}
}

// Cleanup removes every entry whose TTL has elapsed and returns how many this
// call removed. Entries already evicted lazily by earlier Get/Has calls are
// not counted.
func (c *StorageCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range c.namespacedKeysLocked() {
		entry, ok := c.load(key)
		if !ok {
			continue
		}
		if entry.Expired(now) {
			c.storage.RemoveItem(c.prefix + key)
			removed++
		}
	}
	return removed
}

// Keys lists live keys under this cache's namespace, ignoring unrelated data
// in the shared store.
func (c *StorageCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for _, key := range c.namespacedKeysLocked() {
		if c.hasLocked(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *StorageCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.namespacedKeysLocked())
}

func (c *StorageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	for _, key := range c.namespacedKeysLocked() {
		entry, ok := c.load(key)
		if !ok {
			continue
		}
		stats.Size++
		if stats.Oldest.IsZero() || entry.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.Newest) {
			stats.Newest = entry.CreatedAt
		}
	}
	return stats
}

// Close is a no-op: the underlying store's lifecycle is owned by the host.
func (c *StorageCache) Close() error {
	return nil
}

func (c *StorageCache) namespacedKeysLocked() []string {
	var keys []string
	for _, key := range c.storage.Keys() {
		if strings.HasPrefix(key, c.prefix) {
			keys = append(keys, strings.TrimPrefix(key, c.prefix))
		}
	}
	return keys
}
