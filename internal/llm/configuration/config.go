// Package configuration holds the settings for the judge client and its
// middleware chain.
package configuration

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Config is the complete judge client configuration.
type Config struct {
	// HTTPTimeout bounds a single provider round trip.
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`
	HTTPClient  *http.Client  `yaml:"-"            json:"-"`

	// Providers maps provider name to its settings.
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`

	Retry     RetryConfig     `yaml:"retry"      json:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"      json:"cache"`

	// LogRequests enables the per-call logging middleware.
	LogRequests bool `yaml:"log_requests" json:"log_requests"`
}

// ProviderConfig holds endpoint and credentials for one provider.
type ProviderConfig struct {
	Endpoint  string            `yaml:"endpoint"    json:"endpoint"`
	APIKey    string            `yaml:"-"           json:"-"`
	APIKeyEnv string            `yaml:"api_key_env" json:"api_key_env"`
	Headers   map[string]string `yaml:"headers"     json:"headers"`
}

// ResolveAPIKey returns APIKey, falling back to the APIKeyEnv variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// RetryConfig controls exponential backoff for transient judge failures.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"     json:"max_attempts"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time" json:"max_elapsed_time"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"     json:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"       json:"multiplier"`
	UseJitter       bool          `yaml:"use_jitter"       json:"use_jitter"`
}

// Validate checks the backoff parameters are usable.
func (r RetryConfig) Validate() error {
	switch {
	case r.MaxAttempts <= 0:
		return fmt.Errorf("retry: max_attempts must be > 0, got %d", r.MaxAttempts)
	case r.InitialInterval <= 0:
		return fmt.Errorf("retry: initial_interval must be > 0, got %v", r.InitialInterval)
	case r.MaxInterval < r.InitialInterval:
		return fmt.Errorf("retry: max_interval %v < initial_interval %v", r.MaxInterval, r.InitialInterval)
	case r.Multiplier < 1.0:
		return fmt.Errorf("retry: multiplier must be >= 1.0, got %f", r.Multiplier)
	case r.MaxElapsedTime < 0:
		return fmt.Errorf("retry: max_elapsed_time must be >= 0, got %v", r.MaxElapsedTime)
	}
	return nil
}

// RateLimitConfig configures the in-process token bucket per provider/model.
type RateLimitConfig struct {
	Enabled         bool    `yaml:"enabled"           json:"enabled"`
	TokensPerSecond float64 `yaml:"tokens_per_second" json:"tokens_per_second"`
	BurstSize       int     `yaml:"burst"             json:"burst"`
}

// CacheConfig controls Redis-backed judge response caching.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"    json:"enabled"`
	TTL           time.Duration `yaml:"ttl"        json:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"-"          json:"-"`
	RedisDB       int           `yaml:"redis_db"   json:"redis_db"`
}
