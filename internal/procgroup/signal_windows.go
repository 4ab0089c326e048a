//go:build windows

package procgroup

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows has no concept of process groups or POSIX signals. Instead the
// child is created in its own console process group (for CTRL_BREAK) and
// assigned to a Job Object (so Terminate reaches the whole tree even if
// the immediate child has already exited).

func (p *Child) setupProcessGroup() {
	p.command.SysProcAttr = &windows.SysProcAttr{
		CreationFlags: windows.CREATE_UNICODE_ENVIRONMENT | windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// postStart assigns the now-started child to a fresh Job Object so a
// later Terminate can kill the whole tree via TerminateJobObject, even if
// go-ps's BFS walk would otherwise miss a grandchild that reparented.
func (p *Child) postStart() error {
	group, err := newProcessGroup(p.conf.WindowsJobName)
	if err != nil {
		return fmt.Errorf("creating job object: %w", err)
	}
	if err := group.addProcess(p.command.Process); err != nil {
		group.dispose()
		return fmt.Errorf("assigning child to job object: %w", err)
	}
	p.winJobHandle = uintptr(group)
	return nil
}

func (p *Child) terminateProcessGroup() error {
	if p.winJobHandle != 0 {
		p.logger.Debug("[procgroup] terminating job object for pid %d", p.pid)
		if err := windows.TerminateJobObject(windows.Handle(p.winJobHandle), 1); err == nil {
			return nil
		}
		p.logger.Warn("[procgroup] TerminateJobObject failed for pid %d, falling back to TASKKILL", p.pid)
	}

	// taskkill.exe /F /T hard-kills the process and its tree by walking
	// PIDs, useful if the job object assignment above failed.
	return exec.Command("CMD", "/C", "TASKKILL.EXE", "/F", "/T", "/PID", strconv.Itoa(p.pid)).Run()
}

func (p *Child) interruptProcessGroup() error {
	// CTRL_BREAK targets the console process group id, which is the
	// child's own pid since it was created with CREATE_NEW_PROCESS_GROUP.
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.pid))
}

func GetPgid(pid int) (int, error) {
	return 0, errors.New("not implemented on windows")
}

// SignalString returns the name of the given signal, e.g.
// SignalString(syscall.Signal(15)) // "terminated".
func SignalString(s syscall.Signal) string {
	return fmt.Sprintf("%v", s)
}
