//go:build unix

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/agentjudge/internal/domain"
)

// fixture writes an agent script, a config and a task file into a temp dir.
func fixture(t *testing.T, agentBody string) (configPath, tasksPath string) {
	t.Helper()
	dir := t.TempDir()

	agent := filepath.Join(dir, "agent.sh")
	require.NoError(t, os.WriteFile(agent, []byte("#!/bin/sh\n"+agentBody+"\n"), 0o755))

	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
agent:
  binary: `+agent+`
  timeout: 5s
run:
  concurrency: 2
  pass_threshold: 0.5
scorers:
  - kind: exact_match
  - kind: contains
logging:
  level: error
`), 0o600))

	tasksPath = filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksPath, []byte(`
tasks:
  - name: add
    input: print 2+2
    expected: "4"
  - name: greet
    input: say hello
    expected: hello
`), 0o600))
	return configPath, tasksPath
}

func execute(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// The agent answers "4" for the arithmetic task and echoes everything else.
const answeringAgent = `for last; do :; done
case "$last" in
  "print 2+2") echo 4 ;;
  *) echo "$last" ;;
esac`

func TestRunWritesReport(t *testing.T) {
	cfgPath, tasksPath := fixture(t, answeringAgent)

	stdout, err := execute(t, "run", "--config", cfgPath, "--tasks", tasksPath)
	require.NoError(t, err)

	var rep domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.True(t, rep.Finalized)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "4", rep.Results[0].Invocation.Output)
	assert.True(t, rep.Results[0].Passed)
	assert.False(t, rep.Results[1].Passed, "exact_match fails on the echoed prompt")
	assert.Equal(t, 2, rep.Summary.Succeeded)
}

func TestRunWritesReportFile(t *testing.T) {
	cfgPath, tasksPath := fixture(t, answeringAgent)
	out := filepath.Join(t.TempDir(), "report.json")

	stdout, err := execute(t, "run", "-c", cfgPath, "-t", tasksPath, "--out", out, "--experiment", "exp-7")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var rep domain.RunReport
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, "exp-7", rep.ExperimentID)
}

func TestRunRecordsAgentFailures(t *testing.T) {
	cfgPath, tasksPath := fixture(t, `echo "partial: 4" >&2; exit 2`)

	stdout, err := execute(t, "run", "--config", cfgPath, "--tasks", tasksPath)
	require.NoError(t, err, "agent failures never abort a run")

	var rep domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	for _, res := range rep.Results {
		assert.Equal(t, domain.FailureNonZeroExit, res.Invocation.FailureReason)
		assert.Equal(t, "partial: 4", res.Invocation.Output)
		assert.Len(t, res.Scores, 2)
	}
	assert.Equal(t, 2, rep.Summary.Failures[domain.FailureNonZeroExit])
}

func TestValidate(t *testing.T) {
	cfgPath, tasksPath := fixture(t, "echo ok")

	stdout, err := execute(t, "validate", "--config", cfgPath, "--tasks", tasksPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok: 2 tasks, 2 scorers")

	_, err = execute(t, "validate", "--config", cfgPath)
	assert.Error(t, err, "tasks are required")
}

func TestValidateFailsOnMissingBinary(t *testing.T) {
	cfgPath, tasksPath := fixture(t, "echo ok")
	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	broken := bytes.Replace(raw, []byte("agent.sh"), []byte("missing.sh"), 1)
	require.NoError(t, os.WriteFile(cfgPath, broken, 0o600))

	_, err = execute(t, "validate", "--config", cfgPath, "--tasks", tasksPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent binary not found")

	_, err = execute(t, "run", "--config", cfgPath, "--tasks", tasksPath)
	assert.Error(t, err, "pre-flight failures are fatal before any task runs")
}

func TestValidateRequiresJudgeKey(t *testing.T) {
	cfgPath, tasksPath := fixture(t, "echo ok")
	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	withJudge := bytes.Replace(raw, []byte("  - kind: contains"), []byte("  - kind: equivalence"), 1)
	withJudge = append(withJudge, []byte("judge:\n  api_key_env: AGENTJUDGE_CMD_TEST_KEY\n")...)
	require.NoError(t, os.WriteFile(cfgPath, withJudge, 0o600))
	t.Setenv("AGENTJUDGE_CMD_TEST_KEY", "")

	_, err = execute(t, "validate", "--config", cfgPath, "--tasks", tasksPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")
}
