// Package transport defines the request/response types and the composable
// handler pipeline every judge call flows through.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
)

// Provider sends one request to a concrete judge backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Router selects the provider for a request.
type Router interface {
	Pick(provider string) (Provider, error)
}

// Handler processes judge requests. Middleware wraps handlers to add
// caching, rate limiting, retries and logging.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain wraps h so the first middleware is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewRouterHandler creates the innermost handler: it picks the provider,
// applies the per-request timeout and rejects empty answers.
func NewRouterHandler(router Router) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		p, err := router.Pick(req.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to select provider: %w", err)
		}

		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		resp.Usage.LatencyMs = time.Since(start).Milliseconds()
		if resp.Provider == "" {
			resp.Provider = p.Name()
		}

		if strings.TrimSpace(resp.Content) == "" {
			return nil, fmt.Errorf("%w: empty content from %s", llmerrors.ErrInvalidResponse, p.Name())
		}
		return resp, nil
	})
}
