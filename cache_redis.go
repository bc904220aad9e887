package medcontent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheConfig configures a Redis-backed cache.
type RedisCacheConfig struct {
	Addr     string
	DB       int
	Password string
	// Prefix namespaces keys; empty uses DefaultStoragePrefix.
	Prefix string
	// OpTimeout bounds each Redis command, default 2s. The Cache interface is
	// synchronous, so commands run under their own deadline.
	OpTimeout time.Duration
}

// RedisCache implements Cache over go-redis. TTL enforcement is delegated to
// Redis itself (SET with expiration), so there is no sweep and no lazy-expiry
// bookkeeping. Like StorageCache, write failures are logged and swallowed:
// an unreachable Redis degrades the cache to a pass-through, it never fails
// the calling request.
type RedisCache struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
	logger    Logger

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewRedisCache connects a cache to Redis. The connection is verified lazily
// on first use, not at construction.
func NewRedisCache(cfg RedisCacheConfig, logger Logger) *RedisCache {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultStoragePrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &RedisCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			DB:       cfg.DB,
			Password: cfg.Password,
		}),
		prefix:    cfg.Prefix,
		opTimeout: cfg.OpTimeout,
		logger:    logger,
	}
}

// Ping verifies connectivity, for startup health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := c.opCtx()
	defer cancel()

	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", "key", key, "error", err.Error())
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return val, true
}

func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := c.opCtx()
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "key", key, "error", err.Error())
	}
}

func (c *RedisCache) Has(key string) bool {
	ctx, cancel := c.opCtx()
	defer cancel()

	n, err := c.rdb.Exists(ctx, c.prefix+key).Result()
	return err == nil && n == 1
}

func (c *RedisCache) Delete(key string) bool {
	ctx, cancel := c.opCtx()
	defer cancel()

	n, err := c.rdb.Del(ctx, c.prefix+key).Result()
	if err != nil {
		c.logger.Warn("redis del failed", "key", key, "error", err.Error())
		return false
	}
	return n > 0
}

func (c *RedisCache) Clear() {
	for _, key := range c.Keys() {
		c.Delete(key)
	}
}

// Cleanup is a no-op for Redis: the server expires entries itself.
func (c *RedisCache) Cleanup() int {
	return 0
}

func (c *RedisCache) Keys() []string {
	ctx, cancel := c.opCtx()
	defer cancel()

	var keys []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed", "error", err.Error())
	}
	return keys
}

func (c *RedisCache) Size() int {
	return len(c.Keys())
}

// Stats reports local hit/miss counters; entry age bounds are not tracked
// for Redis (the server owns entry metadata).
func (c *RedisCache) Stats() CacheStats {
	size := c.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Hits: c.hits, Misses: c.misses, Size: size}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
