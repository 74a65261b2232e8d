package scoring

import (
	"context"
	"strings"

	"github.com/ahrav/agentjudge/internal/domain"
)

// ExactMatch scores 1 when output equals expected, ignoring surrounding
// whitespace and case.
type ExactMatch struct{ name string }

// NewExactMatch returns an ExactMatch scorer; empty name uses the default.
func NewExactMatch(name string) ExactMatch {
	if name == "" {
		name = NameExactMatch
	}
	return ExactMatch{name: name}
}

func (e ExactMatch) Name() string { return e.name }

func (e ExactMatch) Score(_ context.Context, in ScoreInput) (domain.ScoreRecord, error) {
	if strings.EqualFold(strings.TrimSpace(in.Output), strings.TrimSpace(in.Expected)) {
		return domain.NewScore(e.name, 1, "output matches expected"), nil
	}
	return domain.NewScore(e.name, 0, "output differs from expected"), nil
}

// Contains scores 1 when the expected text appears anywhere in the output,
// case-insensitively. An empty expectation always matches.
type Contains struct{ name string }

// NewContains returns a Contains scorer; empty name uses the default.
func NewContains(name string) Contains {
	if name == "" {
		name = NameContains
	}
	return Contains{name: name}
}

func (c Contains) Name() string { return c.name }

func (c Contains) Score(_ context.Context, in ScoreInput) (domain.ScoreRecord, error) {
	want := strings.ToLower(strings.TrimSpace(in.Expected))
	if strings.Contains(strings.ToLower(in.Output), want) {
		return domain.NewScore(c.name, 1, "output contains expected"), nil
	}
	return domain.NewScore(c.name, 0, "expected text not found in output"), nil
}
