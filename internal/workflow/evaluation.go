// Package workflow runs an evaluation battery as a Temporal workflow. The
// workflow fans out one invoke/score/record chain per task and collects the
// results in registry order; all side effects live in the aggregation
// activities.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/domain"
)

// Activity names as registered by the worker.
const (
	ActivityBeginRun    = "BeginRun"
	ActivityInvokeAgent = "InvokeAgent"
	ActivityScoreOutput = "ScoreOutput"
	ActivityRecordTask  = "RecordTask"
	ActivityFinalizeRun = "FinalizeRun"
)

// invokeGrace covers process teardown on top of the agent timeout.
const invokeGrace = 30 * time.Second

// EvaluationInput is the workflow argument.
type EvaluationInput struct {
	ExperimentID  string        `json:"experiment_id,omitempty"`
	Tasks         []domain.Task `json:"tasks"`
	Concurrency   int           `json:"concurrency"`
	PassThreshold float64       `json:"pass_threshold"`
	TaskTimeout   time.Duration `json:"task_timeout"`
}

// Validate checks the battery and tuning values.
func (in EvaluationInput) Validate() error {
	if len(in.Tasks) == 0 {
		return domain.ErrEmptyRegistry
	}
	for i, t := range in.Tasks {
		if t.Index != i {
			return fmt.Errorf("task at position %d has index %d", i, t.Index)
		}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if in.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if in.PassThreshold < 0 || in.PassThreshold > 1 {
		return errors.New("pass threshold outside [0,1]")
	}
	if in.TaskTimeout <= 0 {
		return errors.New("task timeout must be positive")
	}
	return nil
}

// EvaluationWorkflow produces a finalized RunReport for in.Tasks.
//
// Agent invocations are never retried. Scoring and bookkeeping activities
// retry on infrastructure errors; a scoring activity that still fails
// yields one invalid record per scorer so every task keeps its full set.
func EvaluationWorkflow(ctx workflow.Context, in EvaluationInput) (*domain.RunReport, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "evaluation.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid evaluation input", "Validation", err)
	}
	logger := workflow.GetLogger(ctx)

	opts := newActivityOptions(in.TaskTimeout)
	bookkeeping := workflow.WithActivityOptions(ctx, opts.bookkeeping)

	var begin aggregation.BeginRunOutput
	if err := workflow.ExecuteActivity(bookkeeping, ActivityBeginRun, aggregation.BeginRunInput{
		ExperimentID: in.ExperimentID,
		TaskCount:    len(in.Tasks),
	}).Get(ctx, &begin); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	report := domain.NewRunReport(begin.RunID, in.ExperimentID, in.Tasks, begin.StartedAt)

	limit := in.Concurrency
	if limit <= 0 {
		limit = len(in.Tasks)
	}
	slots := workflow.NewBufferedChannel(ctx, limit)
	wg := workflow.NewWaitGroup(ctx)

	for i := range report.Results {
		res := &report.Results[i]
		slots.Send(ctx, struct{}{})
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			defer slots.Receive(gctx, nil)

			t := taskRun{
				opts:        opts,
				runID:       begin.RunID,
				carrier:     begin.Carrier,
				scorerNames: begin.ScorerNames,
				timeout:     in.TaskTimeout,
				threshold:   in.PassThreshold,
			}
			t.run(gctx, res)
		})
	}
	wg.Wait(ctx)

	var final domain.RunReport
	if err := workflow.ExecuteActivity(bookkeeping, ActivityFinalizeRun, aggregation.FinalizeRunInput{
		Report: *report,
	}).Get(ctx, &final); err != nil {
		return nil, fmt.Errorf("finalize run: %w", err)
	}

	logger.Info("evaluation completed",
		"run_id", final.RunID,
		"total", final.Summary.Total,
		"passed", final.Summary.Passed)
	return &final, nil
}

// activityOptions groups the per-step options; each coroutine derives its
// own contexts from them.
type activityOptions struct {
	bookkeeping workflow.ActivityOptions
	scoring     workflow.ActivityOptions
	invoke      workflow.ActivityOptions
}

func newActivityOptions(taskTimeout time.Duration) activityOptions {
	return activityOptions{
		bookkeeping: workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    30 * time.Second,
				MaximumAttempts:    3,
			},
		},
		scoring: workflow.ActivityOptions{
			StartToCloseTimeout: 10 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    time.Minute,
				MaximumAttempts:    3,
			},
		},
		invoke: workflow.ActivityOptions{
			StartToCloseTimeout: taskTimeout + invokeGrace,
			HeartbeatTimeout:    3 * aggregation.HeartbeatInterval,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		},
	}
}

type taskRun struct {
	opts        activityOptions
	runID       string
	carrier     map[string]string
	scorerNames []string
	timeout     time.Duration
	threshold   float64
}

// run drives one result from pending to recorded. Only res is written.
func (t taskRun) run(ctx workflow.Context, res *domain.TaskResult) {
	logger := workflow.GetLogger(ctx)
	invokeCtx := workflow.WithActivityOptions(ctx, t.opts.invoke)
	scoringCtx := workflow.WithActivityOptions(ctx, t.opts.scoring)
	bookkeeping := workflow.WithActivityOptions(ctx, t.opts.bookkeeping)

	var inv aggregation.InvokeAgentOutput
	err := workflow.ExecuteActivity(invokeCtx, ActivityInvokeAgent, aggregation.InvokeAgentInput{
		RunID:   t.runID,
		Task:    res.Task,
		Timeout: t.timeout,
		Carrier: t.carrier,
	}).Get(ctx, &inv)
	if err != nil {
		// The worker or the activity itself failed; the agent outcome is unknown.
		inv = aggregation.InvokeAgentOutput{
			Invocation: domain.Failed(domain.FailureSpawnError, "", err),
			Carrier:    t.carrier,
		}
	}
	res.Invocation = inv.Invocation
	res.Trace = inv.Trace
	_ = res.Advance(domain.TaskInvoked)

	var scored aggregation.ScoreOutputOutput
	err = workflow.ExecuteActivity(scoringCtx, ActivityScoreOutput, aggregation.ScoreOutputInput{
		RunID:   t.runID,
		Task:    res.Task,
		Output:  res.Invocation.Output,
		Carrier: inv.Carrier,
	}).Get(ctx, &scored)
	if err != nil {
		logger.Warn("scoring activity failed", "task", res.Task.Index, "error", err)
		scored.Scores = make([]domain.ScoreRecord, len(t.scorerNames))
		for i, name := range t.scorerNames {
			scored.Scores[i] = domain.ScorerFailure(name, err)
		}
	}
	res.AppendScores(scored.Scores...)
	_ = res.Advance(domain.TaskScored)

	res.Evaluate(t.threshold)
	_ = res.Advance(domain.TaskRecorded)

	if err := workflow.ExecuteActivity(bookkeeping, ActivityRecordTask, aggregation.RecordTaskInput{
		RunID:  t.runID,
		Result: *res,
	}).Get(ctx, nil); err != nil {
		logger.Warn("record task failed", "task", res.Task.Index, "error", err)
	}
}
