package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline(t *testing.T) {
	_, err := NewPipeline()
	assert.ErrorIs(t, err, ErrNoScorers)

	_, err = NewPipeline(NewExactMatch(""), NewExactMatch(""))
	assert.ErrorIs(t, err, ErrDuplicateScorer)

	_, err = NewPipeline(staticScorer{name: ""})
	assert.Error(t, err)

	p, err := NewPipeline(NewExactMatch(""), NewContains(""))
	require.NoError(t, err)
	assert.Equal(t, []string{NameExactMatch, NameContains}, p.Names())
}

func TestPipelineRun(t *testing.T) {
	t.Run("one record per scorer in configured order", func(t *testing.T) {
		p, err := NewPipeline(
			staticScorer{name: "c", value: 0.3},
			staticScorer{name: "a", value: 1},
			staticScorer{name: "b", value: 0.7},
		)
		require.NoError(t, err)

		recs := p.Run(context.Background(), ScoreInput{Output: "x"})
		require.Len(t, recs, 3)
		assert.Equal(t, "c", recs[0].ScorerName)
		assert.Equal(t, "a", recs[1].ScorerName)
		assert.Equal(t, "b", recs[2].ScorerName)
	})

	t.Run("failing scorer does not affect others", func(t *testing.T) {
		eq, err := NewEquivalence(failWith(errJudgeDown), JudgeOptions{})
		require.NoError(t, err)
		p, err := NewPipeline(eq, NewExactMatch(""), staticScorer{name: "crash", panic: true})
		require.NoError(t, err)

		recs := p.Run(context.Background(), ScoreInput{Input: "print 2+2", Output: "4", Expected: "4"})
		require.Len(t, recs, 3)

		assert.False(t, recs[0].Valid)
		assert.Contains(t, recs[0].Error, errJudgeDown.Error())
		assert.Equal(t, NameEquivalence, recs[0].ScorerName)

		assert.True(t, recs[1].Valid)
		assert.Equal(t, 1.0, recs[1].Value)

		assert.False(t, recs[2].Valid)
		assert.Contains(t, recs[2].Error, "panicked")
	})

	t.Run("cancelled context yields invalid records", func(t *testing.T) {
		p, err := NewPipeline(NewExactMatch(""))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		recs := p.Run(ctx, ScoreInput{Output: "4", Expected: "4"})
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Valid)
	})

	t.Run("failed invocation still scored", func(t *testing.T) {
		judge := replyWith(`{"choice": "C"}`)
		eq, err := NewEquivalence(judge, JudgeOptions{})
		require.NoError(t, err)
		p, err := NewPipeline(eq, NewContains(""))
		require.NoError(t, err)

		recs := p.Run(context.Background(), ScoreInput{Input: "hang", Output: "", Expected: "done"})
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.True(t, r.Valid)
			assert.Zero(t, r.Value)
		}
		assert.Zero(t, judge.callCount())
	})
}

func TestDeterministicScorers(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		scorer Scorer
		in     ScoreInput
		want   float64
	}{
		{"exact trimmed case-insensitive", NewExactMatch(""), ScoreInput{Output: " Paris\n", Expected: "paris"}, 1},
		{"exact mismatch", NewExactMatch(""), ScoreInput{Output: "Paris, France", Expected: "Paris"}, 0},
		{"contains hit", NewContains(""), ScoreInput{Output: "The answer is 4.", Expected: "4"}, 1},
		{"contains case-insensitive", NewContains(""), ScoreInput{Output: "HELLO world", Expected: "hello"}, 1},
		{"contains miss", NewContains(""), ScoreInput{Output: "five", Expected: "4"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := tt.scorer.Score(ctx, tt.in)
			require.NoError(t, err)
			assert.True(t, rec.Valid)
			assert.Equal(t, tt.want, rec.Value)
		})
	}
}

func TestFromSpecs(t *testing.T) {
	judge := replyWith(`{"choice": "A"}`)

	scorers, err := FromSpecs(judge, JudgeDefaults{Provider: "anthropic", Model: "m"}, []Spec{
		{Kind: KindEquivalence},
		{Kind: KindConciseness, Choices: map[string]float64{"A": 1, "B": 0.25, "C": 0}},
		{Kind: KindContains, Name: "mentions_four"},
	})
	require.NoError(t, err)
	require.Len(t, scorers, 3)
	assert.Equal(t, NameEquivalence, scorers[0].Name())
	assert.Equal(t, 0.25, scorers[1].(*Classifier).Choices()["B"])
	assert.Equal(t, "mentions_four", scorers[2].Name())

	_, err = FromSpecs(judge, JudgeDefaults{}, []Spec{{Kind: "vibes"}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = FromSpecs(nil, JudgeDefaults{}, []Spec{{Kind: KindEquivalence}})
	assert.Error(t, err, "llm scorer without a judge")

	assert.True(t, Spec{Kind: KindPossible}.RequiresJudge())
	assert.False(t, Spec{Kind: KindExactMatch}.RequiresJudge())
}
