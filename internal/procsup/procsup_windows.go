//go:build windows

package procsup

import (
	"fmt"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/windows"
)

// resolveServerPID walks the process tree for the first direct child of the
// launcher process. Some Windows Java distributions spawn the actual server
// JVM as a child of a thin launcher wrapper, so the pid the daemon should
// supervise (for metrics and termination) is that child, not the launcher.
func resolveServerPID(cmd *exec.Cmd) (int, error) {
	launcherPID := uint32(cmd.Process.Pid)

	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return cmd.Process.Pid, fmt.Errorf("procsup: snapshot processes: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return cmd.Process.Pid, nil
	}
	for {
		if entry.ParentProcessID == launcherPID {
			return int(entry.ProcessID), nil
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return cmd.Process.Pid, nil
}

// doTerminate kills the process tree. Windows has no graceful SIGTERM
// equivalent for arbitrary console processes, so both graceful and forced
// termination end the process; force only changes whether children are
// swept along with it.
func (h *Handle) doTerminate(force bool) error {
	if force {
		return exec.Command("taskkill", "/T", "/F", "/PID", fmt.Sprint(h.Pid)).Run()
	}
	return exec.Command("taskkill", "/PID", fmt.Sprint(h.Pid)).Run()
}
