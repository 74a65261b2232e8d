//go:build unix

package invoker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/agentjudge/internal/domain"
)

// writeAgent creates an executable shell script standing in for the agent.
func writeAgent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestInvokeSuccess(t *testing.T) {
	// The last argument is the task input.
	bin := writeAgent(t, `for last; do :; done
if [ "$last" = "print 2+2" ]; then echo "  4  "; else echo "unexpected: $*"; exit 3; fi`)

	inv := New(Config{Binary: bin})
	res := inv.Invoke(context.Background(), "print 2+2", domain.TraceContext{}, 5*time.Second)

	assert.True(t, res.Succeeded)
	assert.Equal(t, domain.FailureNone, res.FailureReason)
	assert.Equal(t, "4", res.Output)
	assert.Equal(t, 0, res.ExitCode)
	require.NoError(t, res.Validate())
}

func TestInvokeArgumentOrder(t *testing.T) {
	bin := writeAgent(t, `echo "$@"`)

	inv := New(Config{Binary: bin, Args: []string{"--model", "sonnet"}})
	res := inv.Invoke(context.Background(), "hello world", domain.TraceContext{}, 5*time.Second)

	require.True(t, res.Succeeded)
	assert.Equal(t, "--print --dangerously-skip-permissions --model sonnet hello world", res.Output)
}

func TestInvokeFlagLikeInputIsFinalArgument(t *testing.T) {
	bin := writeAgent(t, `for last; do :; done
printf '%s' "$last"`)

	res := New(Config{Binary: bin}).Invoke(context.Background(), "--version", domain.TraceContext{}, 5*time.Second)

	require.True(t, res.Succeeded, res.Error)
	assert.Equal(t, "--version", res.Output)
}

// processAlive reports whether pid is running and not a zombie.
func processAlive(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	_, rest, _ := strings.Cut(string(stat), ") ")
	return !strings.HasPrefix(rest, "Z")
}

func TestInvokeKillsLeftoverDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "bg.pid")
	bin := writeAgent(t, fmt.Sprintf(`sleep 30 >/dev/null 2>&1 &
echo $! > '%s'
echo 4`, pidFile))

	res := New(Config{Binary: bin}).Invoke(context.Background(), "x", domain.TraceContext{}, 5*time.Second)
	require.True(t, res.Succeeded, res.Error)
	assert.Equal(t, "4", res.Output)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = syscall.Kill(pid, syscall.SIGKILL) })

	assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond,
		"background tool %d outlived the agent", pid)
}

func TestInvokeCleanExitPastDeadlineIsSuccess(t *testing.T) {
	// The background sleep keeps stdout open after the agent exits, so the
	// pipes drain only when WaitDelay expires, well after the deadline.
	bin := writeAgent(t, `sleep 5 &
echo 4`)

	inv := New(Config{Binary: bin, WaitDelay: time.Second})
	res := inv.Invoke(context.Background(), "x", domain.TraceContext{}, 300*time.Millisecond)

	assert.True(t, res.Succeeded, res.Error)
	assert.Equal(t, domain.FailureNone, res.FailureReason)
	assert.Equal(t, "4", res.Output)
	require.NoError(t, res.Validate())
}

func TestInvokeTimeout(t *testing.T) {
	bin := writeAgent(t, `echo partial
sleep 30`)

	inv := New(Config{Binary: bin, WaitDelay: 500 * time.Millisecond})
	timeout := 300 * time.Millisecond

	start := time.Now()
	res := inv.Invoke(context.Background(), "hang", domain.TraceContext{}, timeout)
	elapsed := time.Since(start)

	assert.False(t, res.Succeeded)
	assert.Equal(t, domain.FailureTimeout, res.FailureReason)
	assert.Equal(t, "partial", res.Output)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, elapsed, timeout+500*time.Millisecond+2*time.Second)
	require.NoError(t, res.Validate())
}

func TestInvokeNonZeroExitUsesStderr(t *testing.T) {
	bin := writeAgent(t, `echo "partial: 4" >&2
exit 2`)

	res := New(Config{Binary: bin}).Invoke(context.Background(), "x", domain.TraceContext{}, 5*time.Second)

	assert.False(t, res.Succeeded)
	assert.Equal(t, domain.FailureNonZeroExit, res.FailureReason)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "partial: 4", res.Output)
	assert.Equal(t, "partial: 4", res.Stderr)
}

func TestInvokeNonZeroExitPrefersStdout(t *testing.T) {
	bin := writeAgent(t, `echo answer
echo noise >&2
exit 1`)

	res := New(Config{Binary: bin}).Invoke(context.Background(), "x", domain.TraceContext{}, 5*time.Second)

	assert.Equal(t, domain.FailureNonZeroExit, res.FailureReason)
	assert.Equal(t, "answer", res.Output)
}

func TestInvokeSpawnError(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		inv := New(Config{Binary: filepath.Join(t.TempDir(), "does-not-exist")})
		res := inv.Invoke(context.Background(), "x", domain.TraceContext{}, time.Second)

		assert.False(t, res.Succeeded)
		assert.Equal(t, domain.FailureSpawnError, res.FailureReason)
		assert.Empty(t, res.Output)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("not executable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o600))

		res := New(Config{Binary: path}).Invoke(context.Background(), "x", domain.TraceContext{}, time.Second)
		assert.Equal(t, domain.FailureSpawnError, res.FailureReason)
	})

	t.Run("cancelled before start", func(t *testing.T) {
		bin := writeAgent(t, "echo hi")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := New(Config{Binary: bin}).Invoke(ctx, "x", domain.TraceContext{}, time.Second)
		assert.Equal(t, domain.FailureSpawnError, res.FailureReason)
	})
}

func TestInvokeIsIdempotentInClassification(t *testing.T) {
	bin := writeAgent(t, "exit 7")
	inv := New(Config{Binary: bin})

	first := inv.Invoke(context.Background(), "x", domain.TraceContext{}, 5*time.Second)
	second := inv.Invoke(context.Background(), "x", domain.TraceContext{}, 5*time.Second)

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, first.FailureReason, second.FailureReason)
	assert.Equal(t, first.ExitCode, second.ExitCode)
}

func TestInvokeExportsTraceContext(t *testing.T) {
	bin := writeAgent(t, "env")
	t.Setenv(EnvHostingMarker, "1")
	t.Setenv("CLAUDE_CODE_ENTRYPOINT", "cli")
	t.Setenv(EnvExperimentID, "stale")

	tc := domain.TraceContext{
		ParentSpanID: "00f067aa0ba902b7",
		RootSpanID:   "a3ce929d0e0e4736",
		TraceID:      "4bf92f3577b34da6a3ce929d0e0e4736",
	}
	inv := New(Config{Binary: bin, StripEnv: []string{"CLAUDE_CODE_ENTRYPOINT"}})
	res := inv.Invoke(context.Background(), "x", tc, 5*time.Second)
	require.True(t, res.Succeeded, res.Error)

	env := map[string]string{}
	for _, line := range strings.Split(res.Output, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			env[k] = v
		}
	}

	assert.Equal(t, tc.ParentSpanID, env[EnvParentSpanID])
	assert.Equal(t, tc.RootSpanID, env[EnvRootSpanID])
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", env[EnvTraceParent])
	assert.NotContains(t, env, EnvExperimentID)
	assert.NotContains(t, env, EnvHostingMarker)
	assert.NotContains(t, env, "CLAUDE_CODE_ENTRYPOINT")
}

func TestBuildEnv(t *testing.T) {
	parent := []string{"PATH=/bin", "CLAUDECODE=1", "TRACEPARENT=old", "HOME=/root", "DROP=me"}

	t.Run("empty context injects nothing", func(t *testing.T) {
		env := BuildEnv(parent, []string{"DROP"}, domain.TraceContext{})
		assert.Equal(t, []string{"PATH=/bin", "HOME=/root"}, env)
	})

	t.Run("invalid ids skip traceparent", func(t *testing.T) {
		env := BuildEnv(nil, nil, domain.TraceContext{ParentSpanID: "p", RootSpanID: "r", ExperimentID: "e"})
		assert.ElementsMatch(t, []string{
			EnvParentSpanID + "=p",
			EnvRootSpanID + "=r",
			EnvExperimentID + "=e",
		}, env)
	})
}

func TestResolveBinary(t *testing.T) {
	t.Setenv(BinaryEnvVar, "")
	assert.Equal(t, DefaultBinary, ResolveBinary(""))

	t.Setenv(BinaryEnvVar, "/opt/agent")
	assert.Equal(t, "/opt/agent", ResolveBinary(""))
	assert.Equal(t, "/usr/bin/other", ResolveBinary("/usr/bin/other"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New(Config{Binary: writeAgent(t, "true")}).Validate())

	err := New(Config{Binary: filepath.Join(t.TempDir(), "nope")}).Validate()
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}
