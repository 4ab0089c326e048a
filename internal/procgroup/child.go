// Package procgroup runs a child process attached to its own process
// group (POSIX) or a named kernel Job Object (Windows), so a later
// Interrupt/Terminate reaches the whole process tree, not just the
// immediate child.
package procgroup

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/agentexec/agent-exec/internal/exlog"
)

// Config describes how to spawn the supervised child.
type Config struct {
	Path   string
	Args   []string
	Env    []string
	Stdout *os.File
	Stderr *os.File
	Dir    string

	// InterruptSignal is sent by Interrupt; defaults to SIGTERM.
	InterruptSignal syscall.Signal

	// WindowsJobName names the kernel job object the child is assigned
	// to on the platform that implements process trees that way; unused
	// elsewhere.
	WindowsJobName string
}

// Child is a running child process attached to a process group / Job
// Object, plus the bookkeeping Wait needs to report exit code vs. signal.
type Child struct {
	conf   Config
	logger exlog.Logger

	mu      sync.Mutex
	pid     int
	command *exec.Cmd
	status  syscall.WaitStatus

	winJobHandle uintptr //nolint:unused // used in tree_windows.go
}

// New returns a Child ready to be Run.
func New(l exlog.Logger, c Config) *Child {
	if c.InterruptSignal == 0 {
		c.InterruptSignal = syscall.SIGTERM
	}
	return &Child{conf: c, logger: l}
}

// Pid returns the child's OS process id once Run has started it.
func (c *Child) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// Run starts the child and blocks until it exits. It never returns an
// error for a nonzero or signaled exit - callers use WaitStatus for that;
// the returned error only reflects failure to spawn or wait on the OS
// process itself.
func (c *Child) Run() error {
	if c.command != nil {
		return fmt.Errorf("process is already running")
	}

	c.command = exec.Command(c.conf.Path, c.conf.Args...)
	c.setupProcessGroup()

	if c.conf.Dir != "" {
		if _, err := os.Stat(c.conf.Dir); os.IsNotExist(err) {
			return fmt.Errorf("child working directory %q doesn't exist", c.conf.Dir)
		}
		c.command.Dir = c.conf.Dir
	}

	c.command.Env = c.conf.Env
	c.command.Stdin = nil
	c.command.Stdout = c.conf.Stdout
	c.command.Stderr = c.conf.Stderr

	if err := c.command.Start(); err != nil {
		return fmt.Errorf("starting child: %w", err)
	}

	// postStart's job-object assignment (Windows only; a no-op on POSIX)
	// is load-bearing for the tree-termination guarantee: if it fails,
	// the child must not be left running unsupervised.
	if err := c.postStart(); err != nil {
		c.logger.Error("[procgroup] postStart failed, killing child: %v", err)
		c.command.Process.Kill()
		c.command.Wait()
		return fmt.Errorf("post-start process-group attachment failed: %w", err)
	}

	c.mu.Lock()
	c.pid = c.command.Process.Pid
	c.mu.Unlock()

	c.logger.Info("[procgroup] child running, pid=%d", c.pid)

	waitErr := c.command.Wait()
	if waitErr != nil {
		exitErr := new(exec.ExitError)
		if !errors.As(waitErr, &exitErr) {
			return fmt.Errorf("unexpected wait error %T: %w", waitErr, waitErr)
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			c.status = ws
		}
	}

	return nil
}

// ExitCode returns the child's exit code, and ok=false if it was killed
// by a signal instead of exiting normally.
func (c *Child) ExitCode() (code int, ok bool) {
	if c.status.Signaled() {
		return 0, false
	}
	return c.status.ExitStatus(), true
}

// Signaled reports whether the child was terminated by a signal, and
// which one.
func (c *Child) Signaled() (sig syscall.Signal, ok bool) {
	if !c.status.Signaled() {
		return 0, false
	}
	return c.status.Signal(), true
}

// Interrupt sends the configured interrupt signal to the whole process
// tree. A missing process is treated as already-gone, not an error.
func (c *Child) Interrupt() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.command == nil || c.command.Process == nil {
		return nil
	}

	if err := c.interruptProcessGroup(); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			c.logger.Debug("[procgroup] process %d already exited", c.pid)
			return nil
		}
		c.logger.Warn("[procgroup] interrupt failed for %d: %v, escalating to terminate", c.pid, err)
		return c.terminateProcessGroup()
	}

	return nil
}

// Terminate force-kills the whole process tree.
func (c *Child) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.command == nil || c.command.Process == nil {
		return nil
	}

	return c.terminateProcessGroup()
}
