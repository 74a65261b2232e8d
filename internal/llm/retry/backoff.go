package retry

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
)

// backoff returns the wait before attempt+1. A server-provided Retry-After
// wins when it fits under MaxInterval.
func (r *retryMiddleware) backoff(attempt int, err error) time.Duration {
	var ap AfterProvider
	if errors.As(err, &ap) {
		if d := ap.GetRetryAfter(); d > 0 && d <= r.config.MaxInterval {
			return d
		}
	}
	return ExponentialBackoff(attempt, r.config)
}

// ExponentialBackoff computes InitialInterval * Multiplier^(attempt-1),
// capped at MaxInterval, with optional full jitter.
func ExponentialBackoff(attempt int, cfg configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := cfg.InitialInterval
	if d <= 0 {
		d = time.Millisecond
	}
	mult := max(cfg.Multiplier, 1.0)
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if d >= cfg.MaxInterval {
			d = cfg.MaxInterval
			break
		}
	}

	if cfg.UseJitter && d > 0 {
		return time.Duration(rand.Int64N(int64(d) + 1)) // #nosec G404 -- jitter does not need crypto randomness
	}
	return d
}
