package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, Envelope) error { return f.err }

func mustEnvelope(t *testing.T, key string) Envelope {
	t.Helper()
	env, err := NewEnvelope("harness.task_recorded", "test", "run-1", key, map[string]int{"task_index": 3})
	require.NoError(t, err)
	return env
}

func TestNewEnvelope(t *testing.T) {
	env := mustEnvelope(t, "run-1:task:3")
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, SchemaVersion, env.Version)
	assert.Equal(t, "run-1", env.RunID)
	assert.JSONEq(t, `{"task_index":3}`, string(env.Payload))
	assert.False(t, env.Timestamp.IsZero())

	_, err := NewEnvelope("x", "test", "run-1", "k", make(chan int))
	assert.Error(t, err)
}

func TestJSONLSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLSink(&buf)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "a")))
	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "a")))
	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "b")))

	var keys []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var env Envelope
		require.NoError(t, json.Unmarshal(sc.Bytes(), &env))
		keys = append(keys, env.IdempotencyKey)
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "k")))
	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "k")))
	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "")))
	require.NoError(t, sink.Append(ctx, mustEnvelope(t, "")))

	assert.Len(t, sink.Events(), 3, "empty keys are never deduplicated")
	assert.Len(t, sink.OfType("harness.task_recorded"), 3)
	assert.Empty(t, sink.OfType("harness.run_completed"))
}

func TestMultiSink(t *testing.T) {
	mem := NewMemorySink()
	boom := errors.New("boom")
	multi := MultiSink{failingSink{err: boom}, mem, NewNoOpEventSink()}

	err := multi.Append(context.Background(), mustEnvelope(t, "k"))
	require.ErrorIs(t, err, boom)
	assert.Len(t, mem.Events(), 1, "later sinks still receive the event")
}
