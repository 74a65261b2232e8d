package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/tracing"
	"github.com/ahrav/agentjudge/pkg/activity"
)

// HeartbeatInterval is how often InvokeAgent heartbeats while the agent runs.
const HeartbeatInterval = 10 * time.Second

// BeginRunInput opens a run.
type BeginRunInput struct {
	ExperimentID string `json:"experiment_id,omitempty"`
	TaskCount    int    `json:"task_count"`
}

// BeginRunOutput carries what the workflow needs for every task.
type BeginRunOutput struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	ScorerNames []string          `json:"scorer_names"`
	Carrier     map[string]string `json:"carrier,omitempty"`
}

// InvokeAgentInput runs one task.
type InvokeAgentInput struct {
	RunID   string            `json:"run_id"`
	Task    domain.Task       `json:"task"`
	Timeout time.Duration     `json:"timeout"`
	Carrier map[string]string `json:"carrier,omitempty"`
}

// InvokeAgentOutput holds the invocation and the task span it ran under.
type InvokeAgentOutput struct {
	Invocation domain.InvocationResult `json:"invocation"`
	Trace      domain.TraceContext     `json:"trace"`
	Carrier    map[string]string       `json:"carrier,omitempty"`
}

// ScoreOutputInput scores one invocation's output.
type ScoreOutputInput struct {
	RunID   string            `json:"run_id"`
	Task    domain.Task       `json:"task"`
	Output  string            `json:"output"`
	Carrier map[string]string `json:"carrier,omitempty"`
}

// ScoreOutputOutput holds one record per configured scorer.
type ScoreOutputOutput struct {
	Scores []domain.ScoreRecord `json:"scores"`
}

// RecordTaskInput publishes a recorded task.
type RecordTaskInput struct {
	RunID  string            `json:"run_id"`
	Result domain.TaskResult `json:"result"`
}

// FinalizeRunInput closes a run.
type FinalizeRunInput struct {
	Report domain.RunReport `json:"report"`
}

// Activities exposes the run steps as Temporal activities.
type Activities struct {
	activity.BaseActivities
	invoker  AgentInvoker
	pipeline ScorePipeline
	tracer   trace.Tracer
	events   *EventEmitter
}

// NewActivities wires activities around the same invoker and pipeline the
// in-process Runner uses.
func NewActivities(base activity.BaseActivities, inv AgentInvoker, pipeline ScorePipeline) *Activities {
	return &Activities{
		BaseActivities: base,
		invoker:        inv,
		pipeline:       pipeline,
		tracer:         otel.Tracer(tracing.TracerName),
		events:         NewEventEmitter(base),
	}
}

// BeginRun allocates the run id and opens the run root span. The span is
// ended before returning; task spans reference it through the carrier.
func (a *Activities) BeginRun(ctx context.Context, in BeginRunInput) (*BeginRunOutput, error) {
	if in.TaskCount <= 0 {
		return nil, nonRetryable("BeginRun", domain.ErrEmptyRegistry, "run has no tasks")
	}
	runID := uuid.NewString()
	runCtx, span := tracing.StartRun(ctx, a.tracer, runID, in.ExperimentID)
	defer span.End()

	activity.SafeLog(ctx, "run started",
		"run_id", runID,
		"tasks", in.TaskCount,
		"workflow_id", a.GetWorkflowContext(ctx).WorkflowID)

	return &BeginRunOutput{
		RunID:       runID,
		StartedAt:   time.Now().UTC(),
		ScorerNames: a.pipeline.Names(),
		Carrier:     tracing.Inject(runCtx),
	}, nil
}

// InvokeAgent runs the agent for one task under a fresh task span. It
// returns an error only for malformed input; agent failures are part of the
// result.
func (a *Activities) InvokeAgent(ctx context.Context, in InvokeAgentInput) (*InvokeAgentOutput, error) {
	if err := in.Task.Validate(); err != nil {
		return nil, nonRetryable("InvokeAgent", err, "invalid task")
	}

	ctx = tracing.Extract(ctx, in.Carrier)
	ctx, span := tracing.StartTask(ctx, a.tracer, in.Task)
	defer span.End()

	stop := activity.HeartbeatEvery(ctx, HeartbeatInterval, in.Task.Index)
	tc := tracing.DeriveContext(ctx)
	res := invoke(ctx, a.invoker, in.Task, tc, in.Timeout)
	stop()

	activity.SafeLog(ctx, "agent invoked",
		"run_id", in.RunID,
		"task", in.Task.Label(),
		"succeeded", res.Succeeded,
		"failure_reason", res.FailureReason.String(),
		"duration", res.Duration)

	return &InvokeAgentOutput{Invocation: res, Trace: tc, Carrier: tracing.Inject(ctx)}, nil
}

// ScoreOutput runs every scorer; scorer failures come back as invalid
// records, never as an activity error.
func (a *Activities) ScoreOutput(ctx context.Context, in ScoreOutputInput) (*ScoreOutputOutput, error) {
	if in.Task.Input == "" {
		return nil, nonRetryable("ScoreOutput", fmt.Errorf("%w: empty task input", errInvalidInput), "invalid task")
	}
	ctx = tracing.Extract(ctx, in.Carrier)

	scores := a.pipeline.Run(ctx, scoreInput(&domain.TaskResult{
		Task:       in.Task,
		Invocation: domain.InvocationResult{Output: in.Output},
	}))
	return &ScoreOutputOutput{Scores: scores}, nil
}

// RecordTask emits the task_recorded event.
func (a *Activities) RecordTask(ctx context.Context, in RecordTaskInput) error {
	if in.Result.State != domain.TaskRecorded {
		return nonRetryable("RecordTask",
			fmt.Errorf("%w: task %d in state %s", errInvalidInput, in.Result.Task.Index, in.Result.State),
			"task not recorded")
	}
	a.events.TaskRecorded(ctx, in.RunID, in.Result)
	return nil
}

// FinalizeRun finalizes the report and emits run_completed.
func (a *Activities) FinalizeRun(ctx context.Context, in FinalizeRunInput) (*domain.RunReport, error) {
	report := in.Report
	if err := report.Finalize(time.Now().UTC()); err != nil {
		return nil, nonRetryable("FinalizeRun", err, "cannot finalize run")
	}
	a.events.RunCompleted(ctx, &report)
	activity.SafeLog(ctx, "run completed",
		"run_id", report.RunID,
		"total", report.Summary.Total,
		"passed", report.Summary.Passed)
	return &report, nil
}
