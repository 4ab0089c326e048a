//go:build !windows

package cli

import (
	"os/exec"
	"syscall"
)

// detachSupervisor puts _supervise in its own session so it survives run
// exiting; it manages its own process group/job object for the child it
// spawns in turn.
func detachSupervisor(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
