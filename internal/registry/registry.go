// Package registry holds the ordered, immutable battery of evaluation tasks.
package registry

import (
	"errors"
	"fmt"

	"github.com/ahrav/agentjudge/internal/domain"
)

// ErrIndexOutOfRange indicates a lookup past the end of the registry.
var ErrIndexOutOfRange = errors.New("task index out of range")

// Registry is an ordered collection of tasks. It is safe for concurrent use
// because it is never mutated after construction.
type Registry struct {
	tasks []domain.Task
}

// New builds a registry from tasks, assigning each its position as Index.
// Every task must carry a non-empty input.
func New(tasks ...domain.Task) (*Registry, error) {
	if len(tasks) == 0 {
		return nil, domain.ErrEmptyRegistry
	}
	owned := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		c := t.Clone()
		c.Index = i
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		owned[i] = c
	}
	return &Registry{tasks: owned}, nil
}

// MustNew is New for statically known batteries; it panics on error.
func MustNew(tasks ...domain.Task) *Registry {
	r, err := New(tasks...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of tasks.
func (r *Registry) Len() int { return len(r.tasks) }

// At returns a copy of the task at index i.
func (r *Registry) At(i int) (domain.Task, error) {
	if i < 0 || i >= len(r.tasks) {
		return domain.Task{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(r.tasks))
	}
	return r.tasks[i].Clone(), nil
}

// Tasks returns copies of all tasks in registry order.
func (r *Registry) Tasks() []domain.Task {
	out := make([]domain.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}
