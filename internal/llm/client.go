// Package llm provides the judge client used by LLM-backed scorers. Every
// call flows through a middleware chain of logging, caching, retries and
// rate limiting before reaching a provider adapter.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/agentjudge/internal/llm/cache"
	"github.com/ahrav/agentjudge/internal/llm/configuration"
	"github.com/ahrav/agentjudge/internal/llm/providers"
	"github.com/ahrav/agentjudge/internal/llm/ratelimit"
	"github.com/ahrav/agentjudge/internal/llm/retry"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// Client sends judge prompts. It is safe for concurrent use.
type Client struct {
	handler transport.Handler
	redis   *redis.Client
	cache   *cache.Middleware
	logger  *slog.Logger
}

// New builds a client from cfg. When caching is enabled but Redis is
// unreachable, the client logs a warning and runs uncached.
func New(ctx context.Context, cfg configuration.Config) (*Client, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	router, err := providers.NewRouter(cfg.Providers, httpClient)
	if err != nil {
		return nil, fmt.Errorf("judge providers: %w", err)
	}

	c := &Client{logger: slog.Default().With("component", "llm")}

	var middlewares []transport.Middleware
	if cfg.LogRequests {
		middlewares = append(middlewares, NewLoggingMiddleware(c.logger))
	}

	if cfg.Cache.Enabled {
		rc, err := cache.Dial(ctx, cfg.Cache)
		if err != nil {
			c.logger.Warn("judge cache disabled", "error", err)
		} else {
			c.redis = rc
			c.cache = cache.New(cache.NewRedisStore(rc), cfg.Cache.TTL)
			middlewares = append(middlewares, c.cache.Wrap)
		}
	}

	retryMW, err := retry.NewRetryMiddleware(cfg.Retry)
	if err != nil {
		return nil, err
	}
	middlewares = append(middlewares, retryMW)

	// Inside retry so every attempt consumes a token.
	rateMW, err := ratelimit.NewRateLimitMiddleware(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	middlewares = append(middlewares, rateMW)

	c.handler = transport.Chain(transport.NewRouterHandler(router), middlewares...)
	return c, nil
}

// NewWithHandler wraps an existing handler, typically a test double.
func NewWithHandler(h transport.Handler) *Client {
	return &Client{handler: h, logger: slog.Default().With("component", "llm")}
}

// Complete sends one judge request through the middleware chain.
func (c *Client) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return c.handler.Handle(ctx, req)
}

// CacheStats reports cache counters; zero when caching is off.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// Close releases the Redis connection, if any.
func (c *Client) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
