// Package ratelimit throttles judge calls with an in-process token bucket
// per provider and model.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

type rateLimitMiddleware struct {
	cfg    configuration.RateLimitConfig
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitMiddleware returns a middleware that waits for a token before
// each call. Disabled configs yield a pass-through middleware.
func NewRateLimitMiddleware(cfg configuration.RateLimitConfig) (transport.Middleware, error) {
	if !cfg.Enabled {
		return func(next transport.Handler) transport.Handler { return next }, nil
	}
	if cfg.TokensPerSecond <= 0 {
		return nil, fmt.Errorf("ratelimit: tokens_per_second must be > 0, got %v", cfg.TokensPerSecond)
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = int(math.Ceil(cfg.TokensPerSecond))
	}

	r := &rateLimitMiddleware{
		cfg:      cfg,
		logger:   slog.Default().With("component", "ratelimit"),
		limiters: make(map[string]*rate.Limiter),
	}
	return r.middleware, nil
}

func (r *rateLimitMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		key := req.Provider + ":" + req.Model
		lim := r.limiter(key)

		if err := lim.Wait(ctx); err != nil {
			r.logger.Debug("rate limit wait aborted", "key", key, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Wait refuses when the deadline falls before the next token.
			return nil, &llmerrors.RateLimitError{
				Provider:   req.Provider,
				Limit:      int(r.cfg.TokensPerSecond),
				RetryAfter: 1,
				LocalLimit: true,
			}
		}
		return next.Handle(ctx, req)
	})
}

func (r *rateLimitMiddleware) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(r.cfg.TokensPerSecond), r.cfg.BurstSize)
		r.limiters[key] = lim
	}
	return lim
}
