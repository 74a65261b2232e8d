// Package domain provides the core types of the evaluation harness: tasks,
// invocation results, trace correlation values, score records and run reports.
// The types are plain values designed to cross Temporal activity boundaries
// unchanged, so every field is exported and JSON-serializable.
package domain

import (
	"fmt"
	"maps"
	"strings"
)

// Task pairs an input prompt with the answer a scorer can check it against.
// Tasks are immutable once registered; identity is Index, the position in
// the registry that produced it.
type Task struct {
	// Index is the zero-based position of the task in its registry.
	Index int `json:"index" validate:"min=0"`

	// Name is an optional human label. It never affects scoring.
	Name string `json:"name,omitempty"`

	// Input is the prompt handed to the agent as its sole task argument.
	Input string `json:"input" validate:"required"`

	// Expected is the reference answer (or expected substring).
	Expected string `json:"expected"`

	// Metadata carries dataset columns that are not part of the contract.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the task carries a non-blank input.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Input) == "" {
		return fmt.Errorf("task %d: %w", t.Index, ErrEmptyTaskInput)
	}
	return validate.Struct(t)
}

// Label returns the task name, falling back to its index.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task-%03d", t.Index)
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	c := t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		maps.Copy(c.Metadata, t.Metadata)
	}
	return c
}
