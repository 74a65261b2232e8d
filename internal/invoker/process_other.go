//go:build !unix

package invoker

import "os/exec"

// configureProcessGroup falls back to killing only the direct child.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return cmd.Process.Kill() }
}

// killGroup is a no-op; there is no process group to clean up.
func killGroup(*exec.Cmd) {}
