package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/config"
	"github.com/ahrav/agentjudge/internal/invoker"
	"github.com/ahrav/agentjudge/internal/llm"
	"github.com/ahrav/agentjudge/internal/scoring"
	"github.com/ahrav/agentjudge/internal/tracing"
	"github.com/ahrav/agentjudge/pkg/events"
)

// harness holds the wired components for one process.
type harness struct {
	cfg      config.Config
	logger   *slog.Logger
	tp       *sdktrace.TracerProvider
	judge    *llm.Client
	invoker  *invoker.Invoker
	pipeline *scoring.Pipeline
	sink     events.EventSink
	closers  []func(context.Context) error
}

func newHarness(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *harness, err error) {
	h := &harness{cfg: cfg, logger: logger, invoker: invoker.New(cfg.Agent)}
	defer func() {
		if err != nil {
			h.close(context.Background())
		}
	}()

	h.tp, err = tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(h.tp)
	h.closers = append(h.closers, h.tp.Shutdown)

	var judge scoring.Judge
	if cfg.RequiresJudge() {
		h.judge, err = llm.New(ctx, cfg.Judge.ClientConfig())
		if err != nil {
			return nil, fmt.Errorf("judge client: %w", err)
		}
		judge = h.judge
		h.closers = append(h.closers, func(context.Context) error { return h.judge.Close() })
	}

	scorers, err := scoring.FromSpecs(judge, cfg.Judge.Defaults(), cfg.Scorers)
	if err != nil {
		return nil, err
	}
	if h.pipeline, err = scoring.NewPipeline(scorers...); err != nil {
		return nil, err
	}

	if h.sink, err = h.openSink(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *harness) openSink() (events.EventSink, error) {
	var sinks events.MultiSink
	if h.cfg.Events.Path != "" {
		f, err := os.OpenFile(h.cfg.Events.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		h.closers = append(h.closers, func(context.Context) error { return f.Close() })
		sinks = append(sinks, events.NewJSONLSink(f))
	}
	if h.cfg.Events.Log {
		sinks = append(sinks, events.NewLogSink(h.logger))
	}
	switch len(sinks) {
	case 0:
		return events.NewNoOpEventSink(), nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

func (h *harness) runner() *aggregation.Runner {
	return aggregation.NewRunner(h.cfg.Run, h.invoker, h.pipeline,
		aggregation.WithTracer(h.tp.Tracer(tracing.TracerName)),
		aggregation.WithEventSink(h.sink),
		aggregation.WithLogger(h.logger),
	)
}

// close runs closers in reverse order and logs the joined error.
func (h *harness) close(ctx context.Context) {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	if h.judge != nil {
		stats := h.judge.CacheStats()
		h.logger.Debug("judge cache", "hits", stats.Hits, "misses", stats.Misses, "errors", stats.Errors)
	}
	if err := errors.Join(errs...); err != nil {
		h.logger.Warn("shutdown", "error", err)
	}
}
