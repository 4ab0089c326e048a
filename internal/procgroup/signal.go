//go:build !windows

package procgroup

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func (p *Child) setupProcessGroup() {
	p.command.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// postStart is a no-op on POSIX: setupProcessGroup already placed the
// child in its own process group before Start.
func (p *Child) postStart() error {
	return nil
}

func (p *Child) terminateProcessGroup() error {
	p.logger.Debug("[procgroup] sending SIGKILL to pgid %d", p.pid)
	return syscall.Kill(-p.pid, syscall.SIGKILL)
}

func (p *Child) interruptProcessGroup() error {
	sig := p.conf.InterruptSignal
	if sig == 0 {
		sig = syscall.SIGTERM
	}
	p.logger.Debug("[procgroup] sending signal %s to pgid %d", SignalString(sig), p.pid)
	return syscall.Kill(-p.pid, sig)
}

func GetPgid(pid int) (int, error) {
	return syscall.Getpgid(pid)
}

// SignalString returns the name of the given signal, e.g.
// SignalString(syscall.Signal(15)) // "SIGTERM".
func SignalString(s syscall.Signal) string {
	name := unix.SignalName(s)
	if name == "" {
		return fmt.Sprintf("%d", int(s))
	}
	return name
}
