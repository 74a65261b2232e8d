package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/agentjudge/internal/domain"
)

var (
	// ErrNoScorers indicates a pipeline built without scorers.
	ErrNoScorers = errors.New("pipeline requires at least one scorer")

	// ErrDuplicateScorer indicates two scorers sharing a name.
	ErrDuplicateScorer = errors.New("duplicate scorer name")
)

// Pipeline runs a fixed set of scorers against one task output.
type Pipeline struct {
	scorers []Scorer
	logger  *slog.Logger
}

// NewPipeline validates that names are present and unique.
func NewPipeline(scorers ...Scorer) (*Pipeline, error) {
	if len(scorers) == 0 {
		return nil, ErrNoScorers
	}
	seen := make(map[string]struct{}, len(scorers))
	for _, s := range scorers {
		if s == nil || s.Name() == "" {
			return nil, errors.New("scorer without a name")
		}
		if _, dup := seen[s.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScorer, s.Name())
		}
		seen[s.Name()] = struct{}{}
	}
	return &Pipeline{
		scorers: scorers,
		logger:  slog.Default().With("component", "scoring"),
	}, nil
}

// Names returns scorer names in configured order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.scorers))
	for i, s := range p.scorers {
		names[i] = s.Name()
	}
	return names
}

// Run scores in with every scorer concurrently and returns exactly one
// record per scorer, in configured order. A failing scorer yields an invalid
// record; it never cancels its siblings.
func (p *Pipeline) Run(ctx context.Context, in ScoreInput) []domain.ScoreRecord {
	records := make([]domain.ScoreRecord, len(p.scorers))

	// Plain group: errors are captured per slot, not propagated.
	var g errgroup.Group
	for i, s := range p.scorers {
		g.Go(func() error {
			records[i] = p.runOne(ctx, s, in)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (p *Pipeline) runOne(ctx context.Context, s Scorer, in ScoreInput) (rec domain.ScoreRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = domain.ScorerFailure(s.Name(), fmt.Errorf("scorer panicked: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.ScorerFailure(s.Name(), err)
	}

	rec, err := s.Score(ctx, in)
	if err != nil {
		p.logger.Warn("scorer failed", "scorer", s.Name(), "error", err)
		return domain.ScorerFailure(s.Name(), err)
	}

	rec.ScorerName = s.Name()
	if verr := rec.Validate(); verr != nil {
		return domain.ScorerFailure(s.Name(), verr)
	}
	return rec
}
