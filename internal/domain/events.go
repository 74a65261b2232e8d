package domain

// EventType identifies a domain event emitted by the harness.
type EventType string

const (
	// EventTaskRecorded is emitted once a task reaches the recorded state.
	EventTaskRecorded EventType = "harness.task_recorded"

	// EventRunCompleted is emitted once a run report is finalized.
	EventRunCompleted EventType = "harness.run_completed"
)

// TaskRecordedPayload is the body of an EventTaskRecorded event.
type TaskRecordedPayload struct {
	RunID         string        `json:"run_id"`
	TaskIndex     int           `json:"task_index"`
	Succeeded     bool          `json:"succeeded"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	Passed        bool          `json:"passed"`
	Scores        []ScoreRecord `json:"scores"`
	TraceID       string        `json:"trace_id,omitempty"`
}

// RunCompletedPayload is the body of an EventRunCompleted event.
type RunCompletedPayload struct {
	RunID        string     `json:"run_id"`
	ExperimentID string     `json:"experiment_id,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	Summary      RunSummary `json:"summary"`
}
