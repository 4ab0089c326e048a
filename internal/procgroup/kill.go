//go:build !windows

package procgroup

import "syscall"

// SignalByPid sends sig to the process group rooted at pid, as the kill
// command does from a fresh process that never held a *Child for the
// job it's acting on. A missing group reports syscall.ESRCH, which
// callers treat as already-exited.
func SignalByPid(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// TerminateByPid force-kills the process group rooted at pid.
func TerminateByPid(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
