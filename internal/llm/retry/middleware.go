// Package retry provides bounded exponential-backoff retries for transient
// judge failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// AfterProvider is implemented by errors that carry a server-requested delay.
type AfterProvider interface {
	GetRetryAfter() time.Duration
}

type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryMiddleware validates cfg and returns the retry middleware.
func NewRetryMiddleware(cfg configuration.RetryConfig) (transport.Middleware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		sleep:  sleepCtx,
	}
	return r.middleware, nil
}

func (r *retryMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		var lastErr error
		for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
			resp, err := next.Handle(ctx, req)
			if err == nil {
				if attempt > 1 {
					r.logger.Info("judge call succeeded after retry",
						"attempt", attempt, "provider", req.Provider, "scorer", req.Scorer)
				}
				return resp, nil
			}
			lastErr = err

			if !isRetryable(err) {
				return nil, err
			}
			if attempt == r.config.MaxAttempts {
				break
			}

			backoff := r.backoff(attempt, err)
			if r.config.MaxElapsedTime > 0 && time.Since(start)+backoff > r.config.MaxElapsedTime {
				r.logger.Warn("retry budget exhausted", "elapsed", time.Since(start), "attempts", attempt, "error", err)
				break
			}

			r.logger.Debug("retrying judge call",
				"attempt", attempt, "backoff", backoff, "error", err, "provider", req.Provider)
			if err := r.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("context cancelled during retry: %w", err)
			}
		}

		return nil, fmt.Errorf("%w: %w", llmerrors.ErrMaxRetriesExceeded, lastErr)
	})
}

// isRetryable decides whether another attempt can succeed.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if llmerrors.IsRetryableError(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
