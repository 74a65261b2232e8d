package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// dedup remembers idempotency keys already accepted by a sink.
type dedup struct {
	seen map[string]struct{}
}

// first reports whether key has not been seen, and marks it seen.
func (d *dedup) first(key string) bool {
	if key == "" {
		return true
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// JSONLSink writes one JSON envelope per line.
type JSONLSink struct {
	mu    sync.Mutex
	enc   *json.Encoder
	dedup dedup
}

// NewJSONLSink writes envelopes to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// Append implements EventSink.
func (s *JSONLSink) Append(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dedup.first(env.IdempotencyKey) {
		return nil
	}
	if err := s.enc.Encode(env); err != nil {
		return fmt.Errorf("write event %s: %w", env.Type, err)
	}
	return nil
}

// LogSink records each envelope as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, env Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", env.Type,
		"run_id", env.RunID,
		"idempotency_key", env.IdempotencyKey,
		"payload", string(env.Payload))
	return nil
}

// MemorySink keeps envelopes in memory; used by tests and embedding callers.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
	dedup  dedup
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append implements EventSink.
func (s *MemorySink) Append(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedup.first(env.IdempotencyKey) {
		s.events = append(s.events, env)
	}
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// OfType filters Events by type.
func (s *MemorySink) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, e := range s.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans an envelope out to several sinks and joins their errors.
type MultiSink []EventSink

// Append implements EventSink.
func (m MultiSink) Append(ctx context.Context, env Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
