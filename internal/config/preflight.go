package config

import (
	"errors"
	"fmt"

	"github.com/ahrav/agentjudge/internal/domain"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/registry"
)

// BinaryValidator checks that the agent executable resolves.
// *invoker.Invoker satisfies it.
type BinaryValidator interface {
	Validate() error
}

// Preflight runs every check that must pass before a task starts and
// returns all failures joined.
func Preflight(cfg Config, reg *registry.Registry, agent BinaryValidator) error {
	var errs []error
	if reg == nil || reg.Len() == 0 {
		errs = append(errs, domain.ErrEmptyRegistry)
	}
	errs = append(errs, environmentErrors(cfg, agent)...)
	return joinPreflight(errs)
}

// CheckEnvironment is Preflight without the registry check, for processes
// that receive tasks later.
func CheckEnvironment(cfg Config, agent BinaryValidator) error {
	return joinPreflight(environmentErrors(cfg, agent))
}

func environmentErrors(cfg Config, agent BinaryValidator) []error {
	var errs []error
	if agent != nil {
		if err := agent.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.RequiresJudge() {
		key := cfg.Judge.ClientConfig().Providers[cfg.Judge.Provider].ResolveAPIKey()
		if key == "" {
			errs = append(errs, fmt.Errorf("%w: set %s for the %s judge",
				llmerrors.ErrMissingAPIKey, cfg.Judge.APIKeyEnv, cfg.Judge.Provider))
		}
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func joinPreflight(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pre-flight failed: %w", errors.Join(errs...))
}
