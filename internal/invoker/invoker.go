// Package invoker runs the agent CLI as a child process for one task and
// classifies how that run ended.
//
// Every call produces exactly one domain.InvocationResult. Failures are data,
// not errors: a timeout, a non-zero exit and a failed spawn are each reported
// through InvocationResult.FailureReason so the caller can still score and
// record the task.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ahrav/agentjudge/internal/domain"
)

const (
	// DefaultBinary is the agent executable looked up on PATH.
	DefaultBinary = "claude"

	// BinaryEnvVar overrides the agent executable when no binary is configured.
	BinaryEnvVar = "CLAUDE_BIN"

	// DefaultTimeout bounds a single agent run.
	DefaultTimeout = 5 * time.Minute

	// DefaultWaitDelay bounds how long Invoke waits for output pipes to close
	// after the process group has been killed.
	DefaultWaitDelay = 2 * time.Second
)

// baseArgs are passed before any configured extras and the task input.
var baseArgs = []string{"--print", "--dangerously-skip-permissions"}

// ErrBinaryNotFound indicates the agent executable cannot be resolved.
var ErrBinaryNotFound = errors.New("agent binary not found")

// Config controls how the agent process is launched.
type Config struct {
	// Binary is the executable name or path. Empty falls back to CLAUDE_BIN,
	// then to "claude".
	Binary string `yaml:"binary" json:"binary"`

	// Args are extra flags such as "--model sonnet", placed before the input.
	Args []string `yaml:"args" json:"args"`

	// Timeout is the default wall-clock budget per run.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	// StripEnv names extra variables to drop from the inherited environment.
	StripEnv []string `yaml:"strip_env" json:"strip_env"`

	// WaitDelay bounds pipe draining after a kill.
	WaitDelay time.Duration `yaml:"wait_delay" json:"wait_delay" validate:"gte=0"`
}

// DefaultConfig returns a Config with the stock binary and budgets.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout, WaitDelay: DefaultWaitDelay}
}

// ResolveBinary applies the binary fallback chain.
func ResolveBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv(BinaryEnvVar); env != "" {
		return env
	}
	return DefaultBinary
}

// Invoker launches the agent. It holds no per-call state and is safe for
// concurrent use.
type Invoker struct {
	binary    string
	args      []string
	timeout   time.Duration
	waitDelay time.Duration
	stripEnv  []string
	environ   func() []string
	logger    *slog.Logger
}

// New creates an Invoker from cfg, filling zero budgets with defaults.
func New(cfg Config) *Invoker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	waitDelay := cfg.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}
	return &Invoker{
		binary:    ResolveBinary(cfg.Binary),
		args:      append([]string(nil), cfg.Args...),
		timeout:   timeout,
		waitDelay: waitDelay,
		stripEnv:  append([]string(nil), cfg.StripEnv...),
		environ:   os.Environ,
		logger:    slog.Default().With("component", "invoker"),
	}
}

// Binary returns the resolved executable.
func (i *Invoker) Binary() string { return i.binary }

// Validate checks that the agent executable resolves. Callers treat a
// failure as fatal before any task runs.
func (i *Invoker) Validate() error {
	if _, err := exec.LookPath(i.binary); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrBinaryNotFound, i.binary, err)
	}
	return nil
}

// Invoke runs the agent once with input as its task argument and tc exported
// through the child environment. A non-positive timeout uses the configured
// default. Invoke returns within timeout plus the configured wait delay.
func (i *Invoker) Invoke(ctx context.Context, input string, tc domain.TraceContext, timeout time.Duration) domain.InvocationResult {
	if timeout <= 0 {
		timeout = i.timeout
	}

	if err := ctx.Err(); err != nil {
		return domain.Failed(domain.FailureSpawnError, "", fmt.Errorf("not started: %w", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The input is always the final argument, with no "--" before it: the
	// agent CLI contract is exactly "<bin> --print ... <input>". An input that
	// looks like a flag reaches the agent as one.
	args := make([]string, 0, len(baseArgs)+len(i.args)+1)
	args = append(args, baseArgs...)
	args = append(args, i.args...)
	args = append(args, input)

	cmd := exec.CommandContext(runCtx, i.binary, args...) //nolint:gosec // binary is operator configured
	cmd.Env = BuildEnv(i.environ(), i.stripEnv, tc)
	cmd.WaitDelay = i.waitDelay
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		i.logger.Warn("agent spawn failed", "binary", i.binary, "error", err)
		res := domain.Failed(domain.FailureSpawnError, "", err)
		res.Duration = time.Since(start)
		return res
	}
	waitErr := cmd.Wait()
	killGroup(cmd)
	duration := time.Since(start)
	exitedCleanly := cmd.ProcessState != nil && cmd.ProcessState.Success()
	if waitErr != nil && exitedCleanly {
		// The agent exited 0; the error is from a descendant holding the pipes
		// open or from the deadline passing while they drained.
		i.logger.Debug("agent exited cleanly", "wait_error", waitErr)
		waitErr = nil
	}

	out := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())

	// A killed process reports a signal exit; the context tells us why. A
	// clean exit stands even if the deadline passed while pipes drained.
	if ctxErr := runCtx.Err(); ctxErr != nil && !exitedCleanly {
		msg := fmt.Sprintf("agent exceeded timeout of %v", timeout)
		if !errors.Is(ctxErr, context.DeadlineExceeded) {
			msg = "agent run cancelled"
		}
		i.logger.Warn("agent killed", "reason", msg, "duration", duration)
		res := domain.Failed(domain.FailureTimeout, out, errors.New(msg))
		res.Stderr = errText
		res.Duration = duration
		return res
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res := domain.Failed(domain.FailureSpawnError, "", waitErr)
			res.Stderr = errText
			res.Duration = duration
			return res
		}
		if out == "" {
			out = errText
		}
		res := domain.Failed(domain.FailureNonZeroExit, out, fmt.Errorf("agent exited with code %d", exitErr.ExitCode()))
		res.ExitCode = exitErr.ExitCode()
		res.Stderr = errText
		res.Duration = duration
		i.logger.Debug("agent exited non-zero", "exit_code", res.ExitCode, "duration", duration)
		return res
	}

	return domain.InvocationResult{
		Output:    out,
		Succeeded: true,
		ExitCode:  0,
		Stderr:    errText,
		Duration:  duration,
	}
}
