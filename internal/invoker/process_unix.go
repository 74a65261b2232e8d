//go:build unix

package invoker

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the agent in its own process group and makes
// cancellation kill the whole group. killGroup covers the other exits.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// killGroup kills whatever is left of the agent's process group once the
// agent itself has been reaped. ESRCH means the group is already gone.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
