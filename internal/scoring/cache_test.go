package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/agentjudge/internal/llm"
	"github.com/ahrav/agentjudge/internal/llm/cache"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return nil, llmerrors.ErrCacheMiss
	}
	return b, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func TestClassifierDoesNotCacheUnusableVerdicts(t *testing.T) {
	replies := []string{
		"Sorry, I cannot answer in JSON.",
		`{"reasoning": "same value", "choice": "C"}`,
	}
	calls := 0
	backend := transport.HandlerFunc(func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		content := replies[min(calls, len(replies)-1)]
		calls++
		return &transport.Response{Content: content, Model: req.Model}, nil
	})
	mw := cache.New(&mapStore{data: map[string][]byte{}}, time.Hour)
	c, err := NewEquivalence(llm.NewWithHandler(mw.Wrap(backend)), JudgeOptions{})
	require.NoError(t, err)
	in := ScoreInput{Input: "print 2+2", Output: "4", Expected: "4"}

	_, err = c.Score(context.Background(), in)
	require.Error(t, err, "prose is not a verdict")

	for range 2 {
		rec, err := c.Score(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "C", rec.Choice)
		assert.Equal(t, 1.0, rec.Value)
	}

	assert.Equal(t, 2, calls, "the malformed reply is retried once, the good one is served from cache")
	assert.Equal(t, cache.Stats{Hits: 1, Misses: 2, Rejected: 1}, mw.Stats())
}

func TestClassifierRejectsChoiceOutsideTableFromCache(t *testing.T) {
	calls := 0
	backend := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{Content: `{"choice": "Z"}`}, nil
	})
	mw := cache.New(&mapStore{data: map[string][]byte{}}, time.Hour)
	c, err := NewConciseness(llm.NewWithHandler(mw.Wrap(backend)), JudgeOptions{})
	require.NoError(t, err)

	for range 2 {
		_, err := c.Score(context.Background(), ScoreInput{Output: "4"})
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, mw.Stats().Hits)
}
