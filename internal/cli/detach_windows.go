//go:build windows

package cli

import (
	"os/exec"

	"golang.org/x/sys/windows"
)

// detachSupervisor starts _supervise in its own process group so it
// outlives run and isn't killed by a Ctrl-Break sent to this process.
func detachSupervisor(cmd *exec.Cmd) {
	cmd.SysProcAttr = &windows.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}
