package medcontent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage for tests, optionally failing writes.
type memStorage struct {
	items    map[string]string
	writeErr error
}

func newMemStorage() *memStorage {
	return &memStorage{items: make(map[string]string)}
}

func (s *memStorage) GetItem(key string) (string, bool) {
	value, ok := s.items[key]
	return value, ok
}

func (s *memStorage) SetItem(key, value string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.items[key] = value
	return nil
}

func (s *memStorage) RemoveItem(key string) {
	delete(s.items, key)
}

func (s *memStorage) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys
}

func TestFileStorageRoundTrip(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir(), 0)
	require.NoError(t, err)

	require.NoError(t, storage.SetItem("GET:https://api.test/posts?page=1", "payload"))

	value, ok := storage.GetItem("GET:https://api.test/posts?page=1")
	require.True(t, ok)
	assert.Equal(t, "payload", value)

	keys := storage.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "GET:https://api.test/posts?page=1", keys[0])

	storage.RemoveItem("GET:https://api.test/posts?page=1")
	_, ok = storage.GetItem("GET:https://api.test/posts?page=1")
	assert.False(t, ok)
}

func TestFileStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileStorage(dir, 0)
	require.NoError(t, err)
	require.NoError(t, first.SetItem("key", "persisted"))

	second, err := NewFileStorage(dir, 0)
	require.NoError(t, err)
	value, ok := second.GetItem("key")
	require.True(t, ok)
	assert.Equal(t, "persisted", value)
}

func TestFileStorageQuota(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, storage.SetItem("a", "12345"))
	err = storage.SetItem("b", "123456789")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The store is intact after a rejected write.
	value, ok := storage.GetItem("a")
	require.True(t, ok)
	assert.Equal(t, "12345", value)
}

func TestStorageCacheRoundTrip(t *testing.T) {
	cache := NewStorageCache(newMemStorage(), "", nil)

	cache.Set("GET:https://api.test/posts", []byte(`[{"id":1}]`), time.Minute)

	value, ok := cache.Get("GET:https://api.test/posts")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(value))
	assert.True(t, cache.Has("GET:https://api.test/posts"))
	assert.Equal(t, 1, cache.Size())
}

func TestStorageCacheLazyExpiry(t *testing.T) {
	storage := newMemStorage()
	cache := NewStorageCache(storage, "", nil)

	cache.Set("stale", []byte("v"), 5*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	_, ok := cache.Get("stale")
	assert.False(t, ok)
	// The expired entry was removed from the store on access.
	assert.Empty(t, storage.Keys())
}

func TestStorageCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewStorageCache(newMemStorage(), "", nil)

	cache.Set("forever", []byte("v"), 0)
	time.Sleep(10 * time.Millisecond)

	_, ok := cache.Get("forever")
	assert.True(t, ok)
}

func TestStorageCacheSwallowsWriteFailures(t *testing.T) {
	storage := newMemStorage()
	logger := &captureLogger{}
	cache := NewStorageCache(storage, "", logger)

	storage.writeErr = errors.New("disk full")
	cache.Set("key", []byte("v"), time.Minute) // must not panic or error

	_, ok := cache.Get("key")
	assert.False(t, ok)
	assert.NotEmpty(t, logger.warnings, "write failure should be logged")
}

func TestStorageCacheNamespaceIsolation(t *testing.T) {
	storage := newMemStorage()
	storage.items["unrelated"] = "other app data"

	cache := NewStorageCache(storage, "medcontent:", nil)
	cache.Set("a", []byte("1"), time.Minute)
	cache.Set("b", []byte("2"), time.Minute)

	assert.Equal(t, 2, cache.Size())
	assert.ElementsMatch(t, []string{"a", "b"}, cache.Keys())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	// Foreign data in the shared store is untouched.
	_, ok := storage.GetItem("unrelated")
	assert.True(t, ok)
}

func TestStorageCacheCorruptEntryRemoved(t *testing.T) {
	storage := newMemStorage()
	storage.items["medcontent:bad"] = "{not json"

	cache := NewStorageCache(storage, "medcontent:", nil)
	_, ok := cache.Get("bad")
	assert.False(t, ok)
	_, present := storage.GetItem("medcontent:bad")
	assert.False(t, present, "corrupt entry should be deleted")
}

func TestStorageCacheCleanupCountsThisCall(t *testing.T) {
	cache := NewStorageCache(newMemStorage(), "", nil)

	cache.Set("e1", []byte("v"), 5*time.Millisecond)
	cache.Set("e2", []byte("v"), 5*time.Millisecond)
	cache.Set("live", []byte("v"), time.Minute)
	time.Sleep(15 * time.Millisecond)

	// e1 evicted lazily first; Cleanup only counts what it removes itself.
	_, _ = cache.Get("e1")
	assert.Equal(t, 1, cache.Cleanup())
	assert.Equal(t, 0, cache.Cleanup())
	assert.Equal(t, 1, cache.Size())
}

func TestStorageCacheStats(t *testing.T) {
	cache := NewStorageCache(newMemStorage(), "", nil)

	cache.Set("a", []byte("1"), time.Minute)
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.Equal(t, 1, stats.Size)
	assert.False(t, stats.Oldest.IsZero())
}

// captureLogger records warnings for assertions.
type captureLogger struct {
	warnings []string
}

func (l *captureLogger) Debug(msg string, keysAndValues ...any) {}
func (l *captureLogger) Info(msg string, keysAndValues ...any)  {}
func (l *captureLogger) Warn(msg string, keysAndValues ...any) {
	l.warnings = append(l.warnings, msg)
}
func (l *captureLogger) Error(msg string, keysAndValues ...any) {}
