package domain

import "errors"

// ErrEmptyTaskInput indicates a task without a prompt.
var ErrEmptyTaskInput = errors.New("task input must not be empty")

// ErrEmptyRegistry indicates a run was requested over zero tasks.
var ErrEmptyRegistry = errors.New("task registry is empty")

// ErrInvalidScore indicates a score record outside the [0,1] range or without a scorer name.
var ErrInvalidScore = errors.New("invalid score record")

// ErrInvalidFailureReason indicates an unknown invocation failure reason.
var ErrInvalidFailureReason = errors.New("invalid failure reason")

// ErrReportFinalized indicates a mutation was attempted on a finalized run report.
var ErrReportFinalized = errors.New("run report already finalized")

// ErrResultCountMismatch indicates a report whose results do not cover the registry.
var ErrResultCountMismatch = errors.New("result count does not match task count")
