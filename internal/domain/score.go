package domain

import (
	"fmt"
	"strings"
)

// ScoreRecord is one scorer's judgment of one task's output.
// Records are appended to a task's result and never overwritten.
//
// A record with Valid=false means the scorer itself failed (network error,
// malformed judge response). That is distinct from a valid record with a low
// Value, which means the agent's answer was judged poor.
type ScoreRecord struct {
	// ScorerName identifies the scorer that produced the record.
	ScorerName string `json:"scorer_name" validate:"required"`

	// Value is the normalized score between 0.0 (worst) and 1.0 (best).
	Value float64 `json:"value" validate:"min=0,max=1"`

	// Rationale is the judge's explanation, when one was produced.
	Rationale string `json:"rationale,omitempty"`

	// Choice is the raw category the judge selected, for classifier scorers.
	Choice string `json:"choice,omitempty"`

	// Valid is false when the scorer failed to produce a judgment.
	Valid bool `json:"valid"`

	// Error describes the scorer failure when Valid is false.
	Error string `json:"error,omitempty"`
}

// NewScore builds a valid record, clamping value into [0,1].
func NewScore(scorer string, value float64, rationale string) ScoreRecord {
	return ScoreRecord{
		ScorerName: scorer,
		Value:      clamp01(value),
		Rationale:  strings.TrimSpace(rationale),
		Valid:      true,
	}
}

// ScorerFailure builds the record that stands in for a scorer that could not
// produce a judgment.
func ScorerFailure(scorer string, err error) ScoreRecord {
	msg := "scorer failed"
	if err != nil {
		msg = err.Error()
	}
	return ScoreRecord{ScorerName: scorer, Valid: false, Error: msg}
}

// Validate checks name and range constraints.
func (s ScoreRecord) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}
	if !s.Valid && s.Error == "" {
		return fmt.Errorf("%w: invalid record without error", ErrInvalidScore)
	}
	return nil
}

// IsValid reports whether the record carries a real judgment.
func (s ScoreRecord) IsValid() bool { return s.Valid }
