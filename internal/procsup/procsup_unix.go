//go:build !windows

package procsup

import (
	"os/exec"
	"syscall"
)

// resolveServerPID is the identity on Unix: the launched process is the
// server process itself (no wrapper/launcher indirection to resolve).
func resolveServerPID(cmd *exec.Cmd) (int, error) {
	return cmd.Process.Pid, nil
}

// doTerminate sends SIGKILL when force is set, SIGTERM otherwise.
func (h *Handle) doTerminate(force bool) error {
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	return h.cmd.Process.Signal(sig)
}
