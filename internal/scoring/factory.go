package scoring

import (
	"errors"
	"fmt"
)

// Scorer kinds accepted in configuration.
const (
	KindEquivalence = NameEquivalence
	KindConciseness = NameConciseness
	KindPossible    = NamePossible
	KindExactMatch  = NameExactMatch
	KindContains    = NameContains
)

// ErrUnknownKind indicates a scorer kind with no constructor.
var ErrUnknownKind = errors.New("unknown scorer kind")

// Spec is the static configuration of one scorer.
type Spec struct {
	Kind    string             `yaml:"kind" json:"kind" validate:"required"`
	Name    string             `yaml:"name,omitempty" json:"name,omitempty"`
	Choices map[string]float64 `yaml:"choices,omitempty" json:"choices,omitempty"`
	Model   string             `yaml:"model,omitempty" json:"model,omitempty"`
}

// RequiresJudge reports whether the scorer calls an LLM.
func (s Spec) RequiresJudge() bool {
	switch s.Kind {
	case KindEquivalence, KindConciseness, KindPossible:
		return true
	default:
		return false
	}
}

// JudgeDefaults fills provider and model for LLM scorers that do not set
// their own.
type JudgeDefaults struct {
	Provider string
	Model    string
}

// FromSpecs builds scorers in spec order. judge may be nil when no spec
// requires one.
func FromSpecs(judge Judge, defaults JudgeDefaults, specs []Spec) ([]Scorer, error) {
	out := make([]Scorer, 0, len(specs))
	for i, spec := range specs {
		s, err := fromSpec(judge, defaults, spec)
		if err != nil {
			return nil, fmt.Errorf("scorers[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func fromSpec(judge Judge, defaults JudgeDefaults, spec Spec) (Scorer, error) {
	opts := JudgeOptions{
		Name:     spec.Name,
		Provider: defaults.Provider,
		Model:    defaults.Model,
		Choices:  spec.Choices,
	}
	if spec.Model != "" {
		opts.Model = spec.Model
	}

	switch spec.Kind {
	case KindEquivalence:
		return NewEquivalence(judge, opts)
	case KindConciseness:
		return NewConciseness(judge, opts)
	case KindPossible:
		return NewPossible(judge, opts)
	case KindExactMatch:
		return NewExactMatch(spec.Name), nil
	case KindContains:
		return NewContains(spec.Name), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}
