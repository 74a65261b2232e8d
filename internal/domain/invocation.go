package domain

import (
	"fmt"
	"time"
)

// FailureReason classifies why an agent invocation did not succeed.
// The zero value means the invocation succeeded.
type FailureReason string

const (
	// FailureNone marks a successful invocation.
	FailureNone FailureReason = ""

	// FailureTimeout marks a child killed after exceeding its wall-clock budget.
	FailureTimeout FailureReason = "timeout"

	// FailureNonZeroExit marks a child that exited with a non-zero status.
	FailureNonZeroExit FailureReason = "non_zero_exit"

	// FailureSpawnError marks a child that could not be started at all.
	FailureSpawnError FailureReason = "spawn_error"
)

// Valid reports whether r is one of the known reasons.
func (r FailureReason) Valid() bool {
	switch r {
	case FailureNone, FailureTimeout, FailureNonZeroExit, FailureSpawnError:
		return true
	default:
		return false
	}
}

// String returns the reason, or "none" for a successful invocation.
func (r FailureReason) String() string {
	if r == FailureNone {
		return "none"
	}
	return string(r)
}

// InvocationResult is the outcome of running the agent once for one task.
// It is produced exactly once per task per run.
type InvocationResult struct {
	// Output is the trimmed text the agent produced. On non-zero exit it holds
	// whatever partial text was captured; on spawn errors it is empty.
	Output string `json:"output"`

	// Succeeded is true only when the agent exited 0 within its timeout.
	Succeeded bool `json:"succeeded"`

	// FailureReason is set whenever Succeeded is false.
	FailureReason FailureReason `json:"failure_reason,omitempty"`

	// ExitCode is the child's exit status, or -1 when it never exited normally.
	ExitCode int `json:"exit_code"`

	// Stderr is the trimmed standard error text, kept for diagnosis.
	Stderr string `json:"stderr,omitempty"`

	// Error is a human-readable description of the failure, if any.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock time spent in the child process.
	Duration time.Duration `json:"duration"`
}

// Validate checks the success/failure fields are consistent.
func (r InvocationResult) Validate() error {
	if !r.FailureReason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFailureReason, r.FailureReason)
	}
	if r.Succeeded && r.FailureReason != FailureNone {
		return fmt.Errorf("%w: succeeded result carries reason %q", ErrInvalidFailureReason, r.FailureReason)
	}
	if !r.Succeeded && r.FailureReason == FailureNone {
		return fmt.Errorf("%w: failed result without a reason", ErrInvalidFailureReason)
	}
	return nil
}

// Failed builds a failing result for reason with the given partial output.
func Failed(reason FailureReason, output string, err error) InvocationResult {
	res := InvocationResult{
		Output:        output,
		FailureReason: reason,
		ExitCode:      -1,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
