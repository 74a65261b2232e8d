package configuration

import "time"

const (
	DefaultHTTPTimeout = 60 * time.Second

	DefaultMaxAttempts     = 3
	DefaultMaxElapsedTime  = 2 * time.Minute
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
	DefaultMultiplier      = 2.0

	DefaultTokensPerSecond = 5.0
	DefaultBurstSize       = 10

	DefaultCacheTTL  = 24 * time.Hour
	DefaultRedisAddr = "localhost:6379"

	DefaultAnthropicKeyEnv = "ANTHROPIC_API_KEY"
	DefaultOpenAIKeyEnv    = "OPENAI_API_KEY"
)

// DefaultConfig returns a judge client configuration with conservative
// retry and rate limit settings and caching disabled.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKeyEnv: DefaultAnthropicKeyEnv},
		},
		Retry: DefaultRetryConfig(),
		RateLimit: RateLimitConfig{
			Enabled:         true,
			TokensPerSecond: DefaultTokensPerSecond,
			BurstSize:       DefaultBurstSize,
		},
		Cache: CacheConfig{
			TTL:       DefaultCacheTTL,
			RedisAddr: DefaultRedisAddr,
		},
	}
}

// DefaultRetryConfig is the bounded retry applied to judge calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     DefaultMaxAttempts,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		UseJitter:       true,
	}
}
