// Package scoring turns an agent's output into normalized ScoreRecords.
//
// A Scorer judges one (input, output, expected) triple. LLM-backed
// classifiers ask a judge model to pick one category from a fixed table and
// map the choice to a value in [0,1]; deterministic scorers compare strings.
// The Pipeline runs every configured scorer for one task and converts scorer
// failures into invalid records so one broken scorer never hides the others.
package scoring

import (
	"context"

	"github.com/ahrav/agentjudge/internal/domain"
)

// ScoreInput is everything a scorer may look at.
type ScoreInput struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	Expected string `json:"expected"`
}

// Scorer judges one task output.
//
// Score returns an error only when the scorer could not produce a judgment;
// a poor answer is a valid record with a low Value.
type Scorer interface {
	Name() string
	Score(ctx context.Context, in ScoreInput) (domain.ScoreRecord, error)
}
