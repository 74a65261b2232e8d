package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// NewLoggingMiddleware logs each judge call with its latency, token usage
// and, on failure, its classified error type. Prompts are never logged.
func NewLoggingMiddleware(logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			log := logger.With(
				"request_id", uuid.NewString(),
				"provider", req.Provider,
				"model", req.Model,
				"scorer", req.Scorer,
			)
			start := time.Now()

			resp, err := next.Handle(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				wf := llmerrors.ClassifyLLMError(err)
				log.Warn("judge call failed",
					"duration", elapsed,
					"error_type", wf.Type,
					"retryable", wf.Retryable,
					"error", err)
				return nil, err
			}

			log.Debug("judge call completed",
				"duration", elapsed,
				"cached", resp.Cached,
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens)
			return resp, nil
		})
	}
}
