// Package tracing derives the correlation identifiers that let an agent child
// process attach its spans beneath the harness span that launched it.
//
// The harness opens one root span per run and one child span per task. The
// run's root span id and experiment id ride in OpenTelemetry baggage so that
// DeriveContext can read them from any descendant context without package
// state.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/agentjudge/internal/domain"
)

// Baggage keys carrying run-level correlation data.
const (
	BaggageRootSpanID   = "agentjudge.root_span_id"
	BaggageExperimentID = "agentjudge.experiment_id"
)

// Span names used by the harness.
const (
	SpanRun  = "eval.run"
	SpanTask = "eval.task"
)

// TracerName is the instrumentation scope for harness spans.
const TracerName = "github.com/ahrav/agentjudge"

// DeriveContext reads the ambient span and baggage in ctx and returns the
// correlation values for a child invocation. It performs no I/O.
//
// With no valid span every field is empty. Without a root span id in
// baggage, the current span is treated as its own root.
func DeriveContext(ctx context.Context) domain.TraceContext {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return domain.TraceContext{}
	}

	bag := baggage.FromContext(ctx)
	tc := domain.TraceContext{
		ParentSpanID: sc.SpanID().String(),
		RootSpanID:   bag.Member(BaggageRootSpanID).Value(),
		ExperimentID: bag.Member(BaggageExperimentID).Value(),
		TraceID:      sc.TraceID().String(),
	}
	if tc.RootSpanID == "" {
		tc.RootSpanID = tc.ParentSpanID
	}
	return tc
}

// StartRun opens the run's root span and records its id, and the experiment
// id when non-empty, in baggage for every descendant context.
func StartRun(ctx context.Context, tracer trace.Tracer, runID, experimentID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("eval.run_id", runID)}
	if experimentID != "" {
		attrs = append(attrs, attribute.String("eval.experiment_id", experimentID))
	}
	ctx, span := tracer.Start(ctx, SpanRun,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	bag := baggage.FromContext(ctx)
	if sc := span.SpanContext(); sc.IsValid() {
		bag = setMember(bag, BaggageRootSpanID, sc.SpanID().String())
	}
	if experimentID != "" {
		bag = setMember(bag, BaggageExperimentID, experimentID)
	}
	return baggage.ContextWithBaggage(ctx, bag), span
}

// StartTask opens a fresh child span for one task. Sibling tasks never share
// a span.
func StartTask(ctx context.Context, tracer trace.Tracer, task domain.Task) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanTask,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("eval.task.index", task.Index),
			attribute.String("eval.task.name", task.Label()),
		),
	)
}

// setMember returns bag with key set to value, leaving bag unchanged when the
// member cannot be represented.
func setMember(bag baggage.Baggage, key, value string) baggage.Baggage {
	m, err := baggage.NewMemberRaw(key, value)
	if err != nil {
		return bag
	}
	next, err := bag.SetMember(m)
	if err != nil {
		return bag
	}
	return next
}

// propagator serializes span context and baggage for hops that cannot carry
// a context.Context, such as Temporal workflow inputs.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Inject returns a carrier holding the span context and baggage of ctx.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)
	return carrier
}

// Extract returns ctx enriched with the span context and baggage in carrier.
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	if len(carrier) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(carrier))
}
