package aggregation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/registry"
	"github.com/ahrav/agentjudge/internal/scoring"
)

// scriptedInvoker answers by task input:
//
//	"hang"        -> timeout with partial output
//	"crash"       -> non_zero_exit with stderr text
//	"missing"     -> spawn_error
//	"sleep:<d>"   -> sleeps d, then echoes the input
//	anything else -> echoes the answer after "=" or the input itself
type scriptedInvoker struct {
	mu       sync.Mutex
	traces   map[string]domain.TraceContext
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{traces: map[string]domain.TraceContext{}}
}

func (s *scriptedInvoker) Invoke(ctx context.Context, input string, tc domain.TraceContext, _ time.Duration) domain.InvocationResult {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	s.mu.Lock()
	s.traces[input] = tc
	s.mu.Unlock()

	switch {
	case input == "hang":
		return domain.Failed(domain.FailureTimeout, "partial", context.DeadlineExceeded)
	case input == "crash":
		res := domain.Failed(domain.FailureNonZeroExit, "partial: 4", nil)
		res.ExitCode = 2
		return res
	case input == "missing":
		return domain.Failed(domain.FailureSpawnError, "", nil)
	case strings.HasPrefix(input, "sleep:"):
		d, _ := time.ParseDuration(strings.TrimPrefix(input, "sleep:"))
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		return domain.InvocationResult{Output: input, Succeeded: true}
	}
	out := input
	if _, after, ok := strings.Cut(input, "="); ok {
		out = after
	}
	return domain.InvocationResult{Output: out, Succeeded: true}
}

func (s *scriptedInvoker) traceFor(input string) domain.TraceContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traces[input]
}

func newRecorder() (*tracetest.SpanRecorder, trace.Tracer) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return rec, tp.Tracer("test")
}

func mustPipeline(t *testing.T, scorers ...scoring.Scorer) *scoring.Pipeline {
	t.Helper()
	if len(scorers) == 0 {
		scorers = []scoring.Scorer{scoring.NewExactMatch(""), scoring.NewContains("")}
	}
	p, err := scoring.NewPipeline(scorers...)
	require.NoError(t, err)
	return p
}

func mustRegistry(t *testing.T, tasks ...domain.Task) *registry.Registry {
	t.Helper()
	reg, err := registry.New(tasks...)
	require.NoError(t, err)
	return reg
}
