package domain

import (
	"fmt"
	"sort"
	"time"
)

// TaskState tracks a task through one run.
// Transitions are strictly pending -> invoked -> scored -> recorded.
type TaskState string

const (
	TaskPending  TaskState = "pending"
	TaskInvoked  TaskState = "invoked"
	TaskScored   TaskState = "scored"
	TaskRecorded TaskState = "recorded"
)

// next returns the state that follows s.
func (s TaskState) next() TaskState {
	switch s {
	case TaskPending:
		return TaskInvoked
	case TaskInvoked:
		return TaskScored
	case TaskScored:
		return TaskRecorded
	default:
		return s
	}
}

// TaskResult is everything a run learned about one task.
type TaskResult struct {
	Task       Task             `json:"task"`
	State      TaskState        `json:"state"`
	Trace      TraceContext     `json:"trace"`
	Invocation InvocationResult `json:"invocation"`
	Scores     []ScoreRecord    `json:"scores"`
	Passed     bool             `json:"passed"`
}

// NewTaskResult starts a result in the pending state.
func NewTaskResult(task Task) TaskResult {
	return TaskResult{Task: task.Clone(), State: TaskPending}
}

// Advance moves the result to want, which must be the next state.
func (r *TaskResult) Advance(want TaskState) error {
	if r.State.next() != want || r.State == want {
		return fmt.Errorf("task %d: illegal transition %s -> %s", r.Task.Index, r.State, want)
	}
	r.State = want
	return nil
}

// AppendScores adds records without touching existing ones.
func (r *TaskResult) AppendScores(records ...ScoreRecord) {
	r.Scores = append(r.Scores, records...)
}

// Score returns the record produced by scorer, if any.
func (r TaskResult) Score(scorer string) (ScoreRecord, bool) {
	for _, s := range r.Scores {
		if s.ScorerName == scorer {
			return s, true
		}
	}
	return ScoreRecord{}, false
}

// Evaluate sets Passed: the invocation succeeded and every score is valid
// and at least threshold.
func (r *TaskResult) Evaluate(threshold float64) {
	passed := r.Invocation.Succeeded
	for _, s := range r.Scores {
		if !s.Valid || s.Value < threshold {
			passed = false
		}
	}
	r.Passed = passed
}

// RunSummary aggregates a report for quick reading.
type RunSummary struct {
	Total          int                   `json:"total"`
	Succeeded      int                   `json:"succeeded"`
	Passed         int                   `json:"passed"`
	Failures       map[FailureReason]int `json:"failures,omitempty"`
	ScorerFailures int                   `json:"scorer_failures"`
	MeanScores     map[string]float64    `json:"mean_scores,omitempty"`
}

// RunReport is the order-preserving record of one harness execution.
// Results[i] corresponds to registry index i.
type RunReport struct {
	RunID        string       `json:"run_id"`
	ExperimentID string       `json:"experiment_id,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Results      []TaskResult `json:"results"`
	Summary      RunSummary   `json:"summary"`
	Finalized    bool         `json:"finalized"`
}

// NewRunReport creates a report with one pending result per task.
func NewRunReport(runID, experimentID string, tasks []Task, startedAt time.Time) *RunReport {
	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = NewTaskResult(t)
	}
	return &RunReport{
		RunID:        runID,
		ExperimentID: experimentID,
		StartedAt:    startedAt,
		Results:      results,
	}
}

// Finalize checks every task was recorded, sorts by registry order and
// computes the summary. The report is read-only afterwards.
func (r *RunReport) Finalize(finishedAt time.Time) error {
	if r.Finalized {
		return ErrReportFinalized
	}
	sort.SliceStable(r.Results, func(i, j int) bool {
		return r.Results[i].Task.Index < r.Results[j].Task.Index
	})
	for _, res := range r.Results {
		if res.State != TaskRecorded {
			return fmt.Errorf("task %d left in state %s", res.Task.Index, res.State)
		}
	}
	r.FinishedAt = finishedAt
	r.Summary = Summarize(r.Results)
	r.Finalized = true
	return nil
}

// Summarize computes counts and per-scorer means over valid records.
func Summarize(results []TaskResult) RunSummary {
	sum := RunSummary{
		Total:      len(results),
		Failures:   map[FailureReason]int{},
		MeanScores: map[string]float64{},
	}
	totals := map[string]float64{}
	counts := map[string]int{}

	for _, res := range results {
		if res.Invocation.Succeeded {
			sum.Succeeded++
		} else {
			sum.Failures[res.Invocation.FailureReason]++
		}
		if res.Passed {
			sum.Passed++
		}
		for _, s := range res.Scores {
			if !s.Valid {
				sum.ScorerFailures++
				continue
			}
			totals[s.ScorerName] += s.Value
			counts[s.ScorerName]++
		}
	}
	for name, total := range totals {
		sum.MeanScores[name] = total / float64(counts[name])
	}
	return sum
}
