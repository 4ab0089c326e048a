package procgroup_test

import (
	"bytes"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentexec/agent-exec/internal/exlog"
	"github.com/agentexec/agent-exec/internal/procgroup"
)

func TestChildCapturesOutputAndExitCode(t *testing.T) {
	stdoutFile, stdout := pipeToBuffer(t)
	stderrFile, stderr := pipeToBuffer(t)

	c := procgroup.New(exlog.Discard, procgroup.Config{
		Path:   "sh",
		Args:   []string{"-c", "echo out; echo err 1>&2; exit 3"},
		Stdout: stdoutFile,
		Stderr: stderrFile,
	})

	if err := c.Run(); err != nil {
		t.Fatalf("c.Run() = %v", err)
	}
	stdoutFile.Close()
	stderrFile.Close()

	waitForLine(t, stdout, "out")
	waitForLine(t, stderr, "err")

	if got, want := stdout(), "out\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := stderr(), "err\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}

	code, ok := c.ExitCode()
	if !ok || code != 3 {
		t.Errorf("ExitCode() = (%d, %t), want (3, true)", code, ok)
	}
}

func TestChildInterruptSendsSIGTERM(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal delivery differs on windows")
	}

	stdoutFile, stdout := pipeToBuffer(t)

	c := procgroup.New(exlog.Discard, procgroup.Config{
		Path:   "sh",
		Args:   []string{"-c", "trap 'echo caught; exit 0' TERM; echo ready; while true; do sleep 0.05; done"},
		Stdout: stdoutFile,
	})

	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	waitForLine(t, stdout, "ready")

	if err := c.Interrupt(); err != nil {
		t.Fatalf("c.Interrupt() = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("c.Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit after Interrupt")
	}
	stdoutFile.Close()

	if sig, signaled := c.Signaled(); signaled {
		t.Errorf("child was signaled with %v, want a clean exit via trap", sig)
	}
}

func TestChildTerminateIsForceful(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process-group kill differs on windows")
	}

	stdoutFile, stdout := pipeToBuffer(t)

	c := procgroup.New(exlog.Discard, procgroup.Config{
		Path:   "sh",
		Args:   []string{"-c", "trap '' TERM; echo ready; while true; do sleep 0.05; done"},
		Stdout: stdoutFile,
	})

	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	waitForLine(t, stdout, "ready")

	if err := c.Terminate(); err != nil {
		t.Fatalf("c.Terminate() = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit after Terminate")
	}
	stdoutFile.Close()

	if sig, signaled := c.Signaled(); !signaled || sig.String() != "killed" {
		t.Errorf("Signaled() = (%v, %t), want SIGKILL", sig, signaled)
	}
}

// pipeToBuffer returns a write end to hand to procgroup.Config.Stdout/Stderr
// and a thread-safe reader of what's been captured so far. The caller must
// close the write end before relying on the final (EOF'd) contents.
func pipeToBuffer(t *testing.T) (*os.File, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() = %v", err)
	}

	var mu sync.Mutex
	var buf bytes.Buffer
	done := make(chan struct{})

	go func() {
		defer close(done)
		chunk := make([]byte, 4096)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				mu.Lock()
				buf.Write(chunk[:n])
				mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	read := func() string {
		mu.Lock()
		defer mu.Unlock()
		return buf.String()
	}
	t.Cleanup(func() { <-done })
	return w, read
}

func waitForLine(t *testing.T, read func() string, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(read(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output, got %q", want, read())
}
