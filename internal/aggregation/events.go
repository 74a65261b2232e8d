package aggregation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/pkg/activity"
	"github.com/ahrav/agentjudge/pkg/events"
)

const eventSource = "agentjudge.aggregation"

// EventEmitter publishes harness events with deterministic idempotency
// keys, so that a retried activity re-emits the same logical event.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter emits through base.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// TaskRecorded emits harness.task_recorded for a result in the recorded
// state.
func (e *EventEmitter) TaskRecorded(ctx context.Context, runID string, res domain.TaskResult) {
	payload := domain.TaskRecordedPayload{
		RunID:         runID,
		TaskIndex:     res.Task.Index,
		Succeeded:     res.Invocation.Succeeded,
		FailureReason: res.Invocation.FailureReason,
		Passed:        res.Passed,
		Scores:        res.Scores,
		TraceID:       res.Trace.TraceID,
	}
	key := runID + ":task:" + strconv.Itoa(res.Task.Index)
	e.emit(ctx, domain.EventTaskRecorded, runID, key, payload, fmt.Sprintf("TaskRecorded[%d]", res.Task.Index))
}

// RunCompleted emits harness.run_completed for a finalized report.
func (e *EventEmitter) RunCompleted(ctx context.Context, rep *domain.RunReport) {
	payload := domain.RunCompletedPayload{
		RunID:        rep.RunID,
		ExperimentID: rep.ExperimentID,
		DurationMs:   rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
		Summary:      rep.Summary,
	}
	e.emit(ctx, domain.EventRunCompleted, rep.RunID, rep.RunID+":completed", payload, "RunCompleted")
}

func (e *EventEmitter) emit(ctx context.Context, typ domain.EventType, runID, key string, payload any, desc string) {
	env, err := events.NewEnvelope(string(typ), eventSource, runID, key, payload)
	if err != nil {
		activity.SafeLogError(ctx, "failed to build event", "event_type", typ, "error", err)
		return
	}
	e.base.EmitEventSafe(ctx, env, desc)
}
