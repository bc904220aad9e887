package medcontent

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the environment-driven settings for a ContentClient.
// All variables share the MEDCONTENT_ prefix.
type Config struct {
	BaseURL   string        `env:"BASE_URL"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
	AuthToken string        `env:"AUTH_TOKEN"`

	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay     time.Duration `env:"BASE_DELAY" envDefault:"1s"`
	MaxDelay      time.Duration `env:"MAX_DELAY" envDefault:"30s"`
	BackoffFactor float64       `env:"BACKOFF_FACTOR" envDefault:"2.0"`
	Jitter        float64       `env:"JITTER" envDefault:"0.1"`

	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheSize    int           `env:"CACHE_SIZE" envDefault:"1000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// ConfigFromEnv loads configuration from MEDCONTENT_* environment variables.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "MEDCONTENT_"}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Options translates the configuration into client options. When a Redis
// address is set the persistent cache is used, otherwise the in-memory LRU.
func (cfg *Config) Options(logger Logger) []Option {
	options := []Option{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout),
		WithMaxAttempts(cfg.MaxAttempts),
		WithBaseDelay(cfg.BaseDelay),
		WithMaxDelay(cfg.MaxDelay),
		WithBackoffFactor(cfg.BackoffFactor),
		WithJitter(cfg.Jitter),
		WithDefaultCacheTTL(cfg.CacheTTL),
	}

	if logger != nil {
		options = append(options, WithLogger(logger))
	}
	if cfg.AuthToken != "" {
		options = append(options, WithAuthToken(cfg.AuthToken))
	}

	switch {
	case !cfg.CacheEnabled:
		options = append(options, WithoutCache())
	case cfg.RedisAddr != "":
		options = append(options, WithCache(NewRedisCache(RedisCacheConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		}, logger)))
	default:
		options = append(options, WithMemoryCache(cfg.CacheSize))
	}

	if cfg.Debug {
		options = append(options, WithDebug())
	}
	return options
}
