package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/agentjudge/internal/domain"
)

func newTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, rec
}

func TestDeriveContextWithoutSpan(t *testing.T) {
	tc := DeriveContext(context.Background())
	assert.True(t, tc.IsZero())
}

func TestDeriveContextTaskUnderRun(t *testing.T) {
	tp, _ := newTestTracer(t)
	tracer := tp.Tracer(TracerName)

	runCtx, runSpan := StartRun(context.Background(), tracer, "run-1", "exp-42")
	defer runSpan.End()

	taskCtx, taskSpan := StartTask(runCtx, tracer, domain.Task{Index: 3, Input: "x"})
	defer taskSpan.End()

	tc := DeriveContext(taskCtx)
	assert.Equal(t, taskSpan.SpanContext().SpanID().String(), tc.ParentSpanID)
	assert.Equal(t, runSpan.SpanContext().SpanID().String(), tc.RootSpanID)
	assert.Equal(t, "exp-42", tc.ExperimentID)
	assert.Equal(t, runSpan.SpanContext().TraceID().String(), tc.TraceID)
	assert.NotEqual(t, tc.ParentSpanID, tc.RootSpanID)
}

func TestDeriveContextRootFallsBackToCurrentSpan(t *testing.T) {
	tp, _ := newTestTracer(t)
	ctx, span := tp.Tracer(TracerName).Start(context.Background(), "standalone")
	defer span.End()

	tc := DeriveContext(ctx)
	assert.Equal(t, tc.ParentSpanID, tc.RootSpanID)
	assert.Empty(t, tc.ExperimentID)
}

func TestSiblingTasksGetDistinctSpans(t *testing.T) {
	tp, rec := newTestTracer(t)
	tracer := tp.Tracer(TracerName)

	runCtx, runSpan := StartRun(context.Background(), tracer, "run-1", "")
	ctxA, a := StartTask(runCtx, tracer, domain.Task{Index: 0, Input: "a"})
	ctxB, b := StartTask(runCtx, tracer, domain.Task{Index: 1, Input: "b"})

	tcA, tcB := DeriveContext(ctxA), DeriveContext(ctxB)
	assert.NotEqual(t, tcA.ParentSpanID, tcB.ParentSpanID)
	assert.Equal(t, tcA.RootSpanID, tcB.RootSpanID)
	assert.Empty(t, tcA.ExperimentID)

	a.End()
	b.End()
	runSpan.End()

	ended := rec.Ended()
	require.Len(t, ended, 3)
	for _, s := range ended[:2] {
		assert.Equal(t, SpanTask, s.Name())
		assert.Equal(t, runSpan.SpanContext().SpanID(), s.Parent().SpanID())
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	tp, _ := newTestTracer(t)
	tracer := tp.Tracer(TracerName)

	runCtx, runSpan := StartRun(context.Background(), tracer, "run-1", "exp-7")
	defer runSpan.End()
	taskCtx, taskSpan := StartTask(runCtx, tracer, domain.Task{Input: "x"})
	defer taskSpan.End()

	carrier := Inject(taskCtx)
	require.NotEmpty(t, carrier["traceparent"])

	restored := Extract(context.Background(), carrier)
	assert.Equal(t, DeriveContext(taskCtx), DeriveContext(restored))

	assert.Equal(t, context.Background(), Extract(context.Background(), nil))
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	tp, err := NewProvider(ctx, Config{})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(ctx))

	var buf bytes.Buffer
	tp, err = NewProvider(ctx, Config{Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)
	_, span := tp.Tracer(TracerName).Start(ctx, "export-check")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))
	assert.Contains(t, buf.String(), "export-check")

	_, err = NewProvider(ctx, Config{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}
