package activity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/agentjudge/pkg/events"
)

type flakySink struct {
	failures int32
	calls    atomic.Int32
	mem      *events.MemorySink
}

func (f *flakySink) Append(ctx context.Context, env events.Envelope) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("sink unavailable")
	}
	return f.mem.Append(ctx, env)
}

func envelope(t *testing.T) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope("harness.run_completed", "test", "run-1", "run-1:completed", struct{}{})
	require.NoError(t, err)
	return env
}

func TestGetWorkflowContextOutsideActivity(t *testing.T) {
	wf := GetWorkflowContext(context.Background())
	assert.False(t, wf.InActivity())
	assert.Empty(t, wf.WorkflowID)
}

func TestEmitEventSafe(t *testing.T) {
	t.Run("nil sink is ignored", func(t *testing.T) {
		base := NewBaseActivities(nil)
		base.EmitEventSafe(context.Background(), envelope(t), "run completed")
	})

	t.Run("retries once", func(t *testing.T) {
		sink := &flakySink{failures: 1, mem: events.NewMemorySink()}
		base := NewBaseActivities(sink)

		base.EmitEventSafe(context.Background(), envelope(t), "run completed")

		assert.Equal(t, int32(2), sink.calls.Load())
		assert.Len(t, sink.mem.Events(), 1)
	})

	t.Run("gives up without error", func(t *testing.T) {
		sink := &flakySink{failures: 5, mem: events.NewMemorySink()}
		base := NewBaseActivities(sink)

		base.EmitEventSafe(context.Background(), envelope(t), "run completed")

		assert.Equal(t, int32(2), sink.calls.Load())
		assert.Empty(t, sink.mem.Events())
	})

	t.Run("cancelled context stops the retry", func(t *testing.T) {
		sink := &flakySink{failures: 5, mem: events.NewMemorySink()}
		base := NewBaseActivities(sink)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		base.EmitEventSafe(ctx, envelope(t), "run completed")
		assert.Less(t, time.Since(start), 150*time.Millisecond)
		assert.Equal(t, int32(1), sink.calls.Load())
	})
}

func TestHeartbeatOutsideActivity(t *testing.T) {
	stop := HeartbeatEvery(context.Background(), time.Millisecond)
	stop()
	RecordHeartbeat(context.Background(), "ignored")
}
