// Package events provides the event envelope and sinks used to publish
// harness progress (recorded tasks, completed runs) to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped on every envelope.
const SchemaVersion = "1.0.0"

// Envelope wraps a domain event payload with routing and idempotency
// metadata.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing, e.g. "harness.task_recorded".
	Type string `json:"type"`

	// Source is the component that emitted the event.
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is deterministic per logical event, so a retried
	// emission carries the same key and sinks can drop the duplicate.
	IdempotencyKey string `json:"idempotency_key"`

	// RunID is the harness run the event belongs to.
	RunID string `json:"run_id"`

	// WorkflowID is set when the run executes as a Temporal workflow.
	WorkflowID string `json:"workflow_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope with a fresh ID.
func NewEnvelope(eventType, source, runID, idempotencyKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        SchemaVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		RunID:          runID,
		Payload:        raw,
	}, nil
}

// EventSink receives envelopes.
//
// Append should treat a repeated IdempotencyKey as a no-op and return
// quickly. Callers never fail their primary operation because of a sink
// error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return NoOpEventSink{} }
