// Package aggregation drives every registered task through invocation and
// scoring and assembles the ordered RunReport. The same steps run either
// in-process through Runner or as Temporal activities through Activities.
package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/registry"
	"github.com/ahrav/agentjudge/internal/scoring"
	"github.com/ahrav/agentjudge/internal/tracing"
	"github.com/ahrav/agentjudge/pkg/activity"
	"github.com/ahrav/agentjudge/pkg/events"
)

// DefaultPassThreshold is the minimum score a task needs on every scorer.
const DefaultPassThreshold = 0.5

// AgentInvoker runs the agent once. *invoker.Invoker satisfies it.
type AgentInvoker interface {
	Invoke(ctx context.Context, input string, tc domain.TraceContext, timeout time.Duration) domain.InvocationResult
}

// ScorePipeline scores one output with every configured scorer.
// *scoring.Pipeline satisfies it.
type ScorePipeline interface {
	Run(ctx context.Context, in scoring.ScoreInput) []domain.ScoreRecord
	Names() []string
}

// Config tunes a run.
type Config struct {
	// Concurrency bounds tasks in flight; 0 means unbounded.
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gte=0"`

	// PassThreshold is the per-scorer minimum for Passed.
	PassThreshold float64 `yaml:"pass_threshold" json:"pass_threshold" validate:"gte=0,lte=1"`

	// TaskTimeout is handed to the invoker; 0 uses the invoker default.
	TaskTimeout time.Duration `yaml:"task_timeout" json:"task_timeout" validate:"gte=0"`

	ExperimentID string `yaml:"experiment_id" json:"experiment_id"`
}

// DefaultConfig returns an unbounded run with the default threshold.
func DefaultConfig() Config {
	return Config{PassThreshold: DefaultPassThreshold}
}

// Runner executes a registry in-process.
type Runner struct {
	cfg      Config
	invoker  AgentInvoker
	pipeline ScorePipeline
	tracer   trace.Tracer
	events   *EventEmitter
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithTracer sets the tracer used for run and task spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithEventSink sets where task and run events go.
func WithEventSink(sink events.EventSink) Option {
	return func(r *Runner) { r.events = NewEventEmitter(activity.NewBaseActivities(sink)) }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l.With("component", "aggregation") }
}

// NewRunner wires a Runner. Tracing defaults to the global provider and
// events default to a no-op sink.
func NewRunner(cfg Config, inv AgentInvoker, pipeline ScorePipeline, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		invoker:  inv,
		pipeline: pipeline,
		tracer:   otel.Tracer(tracing.TracerName),
		events:   NewEventEmitter(activity.NewBaseActivities(events.NewNoOpEventSink())),
		logger:   slog.Default().With("component", "aggregation"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every task in reg and returns the finalized report.
//
// Invocation and scorer failures are recorded, never returned. If ctx is
// cancelled, tasks not yet started are recorded as spawn errors and the
// report is returned together with the context error.
func (r *Runner) Run(ctx context.Context, reg *registry.Registry) (*domain.RunReport, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, domain.ErrEmptyRegistry
	}

	runID := r.newID()
	ctx, span := tracing.StartRun(ctx, r.tracer, runID, r.cfg.ExperimentID)
	defer span.End()

	report := domain.NewRunReport(runID, r.cfg.ExperimentID, reg.Tasks(), r.now())
	r.logger.InfoContext(ctx, "run started",
		"run_id", runID,
		"tasks", len(report.Results),
		"concurrency", r.cfg.Concurrency)

	var g errgroup.Group
	if r.cfg.Concurrency > 0 {
		g.SetLimit(r.cfg.Concurrency)
	}
	for i := range report.Results {
		res := &report.Results[i]
		g.Go(func() error {
			r.runTask(ctx, runID, res)
			return nil
		})
	}
	_ = g.Wait()

	if err := report.Finalize(r.now()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("finalize run %s: %w", runID, err)
	}
	span.SetAttributes(
		attribute.Int("eval.tasks.total", report.Summary.Total),
		attribute.Int("eval.tasks.passed", report.Summary.Passed),
	)
	r.events.RunCompleted(ctx, report)
	r.logger.InfoContext(ctx, "run completed",
		"run_id", runID,
		"total", report.Summary.Total,
		"succeeded", report.Summary.Succeeded,
		"passed", report.Summary.Passed,
		"scorer_failures", report.Summary.ScorerFailures,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run %s interrupted: %w", runID, err)
	}
	return report, nil
}

// runTask moves one result from pending to recorded. It writes only to res.
func (r *Runner) runTask(ctx context.Context, runID string, res *domain.TaskResult) {
	ctx, span := tracing.StartTask(ctx, r.tracer, res.Task)
	defer span.End()

	res.Trace = tracing.DeriveContext(ctx)
	res.Invocation = invoke(ctx, r.invoker, res.Task, res.Trace, r.cfg.TaskTimeout)
	r.advance(ctx, res, domain.TaskInvoked)

	res.AppendScores(r.pipeline.Run(ctx, scoreInput(res))...)
	r.advance(ctx, res, domain.TaskScored)

	res.Evaluate(r.cfg.PassThreshold)
	r.advance(ctx, res, domain.TaskRecorded)

	annotateTaskSpan(span, res)
	r.events.TaskRecorded(ctx, runID, *res)
	r.logger.DebugContext(ctx, "task recorded",
		"run_id", runID,
		"task", res.Task.Label(),
		"succeeded", res.Invocation.Succeeded,
		"failure_reason", res.Invocation.FailureReason.String(),
		"passed", res.Passed)
}

func (r *Runner) advance(ctx context.Context, res *domain.TaskResult, to domain.TaskState) {
	if err := res.Advance(to); err != nil {
		r.logger.ErrorContext(ctx, "task state", "error", err)
	}
}

// invoke runs the agent unless ctx is already done, in which case the task
// is recorded as never started.
func invoke(ctx context.Context, inv AgentInvoker, task domain.Task, tc domain.TraceContext, timeout time.Duration) domain.InvocationResult {
	if err := ctx.Err(); err != nil {
		return domain.Failed(domain.FailureSpawnError, "", fmt.Errorf("not started: %w", err))
	}
	return inv.Invoke(ctx, task.Input, tc, timeout)
}

func scoreInput(res *domain.TaskResult) scoring.ScoreInput {
	return scoring.ScoreInput{
		Input:    res.Task.Input,
		Output:   res.Invocation.Output,
		Expected: res.Task.Expected,
	}
}

func annotateTaskSpan(span trace.Span, res *domain.TaskResult) {
	span.SetAttributes(
		attribute.Bool("eval.task.succeeded", res.Invocation.Succeeded),
		attribute.Bool("eval.task.passed", res.Passed),
		attribute.Int64("eval.task.duration_ms", res.Invocation.Duration.Milliseconds()),
	)
	if !res.Invocation.Succeeded {
		span.SetAttributes(attribute.String("eval.task.failure_reason", string(res.Invocation.FailureReason)))
		span.SetStatus(codes.Error, res.Invocation.FailureReason.String())
	}
}
