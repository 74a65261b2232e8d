// Package activity provides infrastructure shared by Temporal activities and
// their in-process equivalents: workflow context extraction, logging that
// works inside and outside an activity, heartbeats and best-effort event
// emission.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/agentjudge/pkg/events"
)

// WorkflowContext identifies the Temporal execution an activity runs in.
// All fields are empty when the caller is not an activity.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// InActivity reports whether the context carries Temporal activity info.
func (w WorkflowContext) InActivity() bool { return w.WorkflowID != "" || w.ActivityID != "" }

// BaseActivities bundles the event sink shared by every activity type.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities returns base infrastructure emitting to sink. A nil
// sink disables event emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext extracts execution details, or the zero value outside
// an activity.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	return GetWorkflowContext(ctx)
}

// GetWorkflowContext extracts execution details, or the zero value outside
// an activity.
func GetWorkflowContext(ctx context.Context) (wfCtx WorkflowContext) {
	defer func() {
		if recover() != nil {
			wfCtx = WorkflowContext{}
		}
	}()
	info := activity.GetInfo(ctx)
	return WorkflowContext{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
		Attempt:    info.Attempt,
	}
}

// inActivity reports whether ctx was created by the Temporal activity
// runtime; activity.GetInfo panics otherwise.
func inActivity(ctx context.Context) bool {
	return GetWorkflowContext(ctx).InActivity()
}

// EmitEventSafe delivers envelope with one retry. Failures are logged and
// never returned.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}
	if wf := GetWorkflowContext(ctx); wf.InActivity() {
		envelope.WorkflowID = wf.WorkflowID
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, fmt.Sprintf("event emission cancelled: %s", description),
					"event_type", envelope.Type)
				return
			}
		}

		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}

		SafeLogDebug(ctx, fmt.Sprintf("event emitted: %s", description),
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("failed to emit %s after %d attempts", description, maxAttempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat records a heartbeat when running as an activity.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at info level through the activity logger, or slog.Default
// outside an activity.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	if inActivity(ctx) {
		activity.GetLogger(ctx).Info(msg, keyvals...)
		return
	}
	slog.Default().InfoContext(ctx, msg, keyvals...)
}

// SafeLogDebug is SafeLog at debug level.
func SafeLogDebug(ctx context.Context, msg string, keyvals ...any) {
	if inActivity(ctx) {
		activity.GetLogger(ctx).Debug(msg, keyvals...)
		return
	}
	slog.Default().DebugContext(ctx, msg, keyvals...)
}

// SafeLogError is SafeLog at error level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	if inActivity(ctx) {
		activity.GetLogger(ctx).Error(msg, keyvals...)
		return
	}
	slog.Default().ErrorContext(ctx, msg, keyvals...)
}

// RecordHeartbeat records details when ctx is an activity context and does
// nothing otherwise.
func RecordHeartbeat(ctx context.Context, details ...any) {
	if !inActivity(ctx) {
		return
	}
	activity.RecordHeartbeat(ctx, details...)
}

// HeartbeatEvery heartbeats on interval until the returned stop func is
// called. Outside an activity it is a no-op.
func HeartbeatEvery(ctx context.Context, interval time.Duration, details ...any) (stop func()) {
	if !inActivity(ctx) || interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				activity.RecordHeartbeat(ctx, details...)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}
