//go:build windows

package procgroup

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// SignalByPid best-effort delivers an interrupt to the process group
// rooted at pid via CTRL_BREAK, since Windows has no POSIX process-group
// signals. A process that ignores CTRL_BREAK (the common case for
// console-less children) simply doesn't react; kill's caller escalates
// to TerminateByPid on a subsequent --signal KILL the same way the
// in-process watcher's kill-after does.
func SignalByPid(pid int, sig syscall.Signal) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid))
}

// TerminateByPid hard-kills pid and its descendants via taskkill, since
// the kill command runs in a fresh process with no handle to the job
// object _supervise created.
func TerminateByPid(pid int) error {
	return exec.Command("CMD", "/C", "TASKKILL.EXE", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
