// Package supervisor implements the _supervise side of agent-exec: spawn
// the target command in its own process tree, tee its output to the
// per-job log files, watch for a timeout or kill-after deadline, and
// write the terminal state.json when the child exits. It runs as a
// separate, detached OS process from run; the two communicate only
// through the job's directory on disk.
package supervisor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/agentexec/agent-exec/internal/exlog"
	"github.com/agentexec/agent-exec/internal/jobenv"
	"github.com/agentexec/agent-exec/internal/jobstore"
	"github.com/agentexec/agent-exec/internal/procgroup"
)

// Config bundles everything run passes to _supervise on its argument line.
type Config struct {
	JobID           string
	Root            string
	Command         []string
	Dir             string
	FullLogPath     string
	EnvOpts         jobenv.BuildOpts
	TimeoutMs       int
	KillAfterMs     int
	ProgressEveryMs int
}

const windowsJobNamePrefix = "AgentExec-"

// Run executes the full supervisor lifecycle and returns only once the
// child (or the supervisor's own setup) has reached a terminal state.
// The returned error is for logging only - the terminal outcome always
// lives in state.json, which is what every other command reads.
func Run(logger exlog.Logger, cfg Config) error {
	h, err := jobstore.Open(cfg.Root, cfg.JobID)
	if err != nil {
		return fmt.Errorf("opening job %s: %w", cfg.JobID, err)
	}

	state, ok, err := h.ReadState()
	if err != nil {
		return fmt.Errorf("reading initial state: %w", err)
	}
	var startedAt time.Time
	if ok {
		startedAt, _ = time.Parse(time.RFC3339, state.StartedAt)
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	env, err := jobenv.Build(cfg.EnvOpts)
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("building child environment: %w", err))
	}

	stdoutLog, err := os.OpenFile(h.LogPath("stdout"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("opening stdout.log: %w", err))
	}
	defer stdoutLog.Close()

	stderrLog, err := os.OpenFile(h.LogPath("stderr"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("opening stderr.log: %w", err))
	}
	defer stderrLog.Close()

	fullLogPath := cfg.FullLogPath
	if fullLogPath == "" {
		fullLogPath = h.FullLogPath()
	}
	fullLog, err := os.OpenFile(fullLogPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("opening full.log: %w", err))
	}
	defer fullLog.Close()

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("creating stdout pipe: %w", err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("creating stderr pipe: %w", err))
	}

	windowsJobName := windowsJobNamePrefix + cfg.JobID

	child := procgroup.New(logger, procgroup.Config{
		Path:           cfg.Command[0],
		Args:           cfg.Command[1:],
		Env:            env.ToSlice(),
		Dir:            cfg.Dir,
		Stdout:         stdoutW,
		Stderr:         stderrW,
		WindowsJobName: windowsJobName,
	})

	runDone := make(chan error, 1)
	go func() { runDone <- child.Run() }()

	// Run starts the child and attaches it to its process group/job
	// object before Pid() becomes nonzero; if that attachment fails, Run
	// returns promptly instead of blocking on Wait, so we race the two.
	pid, earlyErr := waitForPidOrFailure(child, runDone)
	if pid == 0 {
		stdoutW.Close()
		stderrW.Close()
		return failSetup(logger, h, cfg.JobID, startedAt, fmt.Errorf("child failed to start: %w", earlyErr))
	}

	state.JobID = cfg.JobID
	state.Status = jobstore.StatusRunning
	state.StartedAt = startedAt.UTC().Format(time.RFC3339)
	state.Pid = pid
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	state.WindowsJobName = platformWindowsJobName(windowsJobName)
	if err := h.WriteStateAtomic(state); err != nil {
		logger.Error("[supervisor] writing handshake state: %v", err)
	}

	var fullLogMu sync.Mutex
	var tee sync.WaitGroup
	tee.Add(2)
	go teeStream(&tee, &fullLogMu, stdoutR, stdoutLog, fullLog, "STDOUT")
	go teeStream(&tee, &fullLogMu, stderrR, stderrLog, fullLog, "STDERR")

	childExited := make(chan struct{})
	var watcherWg sync.WaitGroup
	if cfg.TimeoutMs > 0 || cfg.ProgressEveryMs > 0 {
		watcherWg.Add(1)
		go watch(&watcherWg, logger, h, child, childExited, cfg)
	}

	runErr := <-runDone
	stdoutW.Close()
	stderrW.Close()
	close(childExited)

	tee.Wait()
	watcherWg.Wait()

	if runErr != nil {
		logger.Error("[supervisor] child wait error: %v", runErr)
	}

	finishedAt := time.Now().UTC()
	duration := finishedAt.Sub(startedAt).Milliseconds()

	final := state
	final.FinishedAt = strPtr(finishedAt.Format(time.RFC3339))
	final.DurationMs = &duration
	final.UpdatedAt = finishedAt.Format(time.RFC3339)

	if sig, signaled := child.Signaled(); signaled {
		final.Status = jobstore.StatusKilled
		name := procgroup.SignalString(sig)
		final.Signal = &name
	} else {
		final.Status = jobstore.StatusExited
		code, _ := child.ExitCode()
		final.ExitCode = intPtr(code)
	}

	if err := h.WriteStateAtomic(final); err != nil {
		logger.Error("[supervisor] writing terminal state: %v", err)
	}

	return nil
}

// waitForPidOrFailure polls for the child's pid to become available while
// also watching runDone, so a same-process setup failure (e.g. job-object
// assignment) is detected immediately rather than after a multi-second
// poll timeout.
func waitForPidOrFailure(child *procgroup.Child, runDone chan error) (pid int, err error) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pid := child.Pid(); pid != 0 {
			return pid, nil
		}
		select {
		case err := <-runDone:
			runDone <- err // put it back for the later <-runDone read
			return 0, err
		default:
		}
		time.Sleep(time.Millisecond)
	}
	return 0, fmt.Errorf("timed out waiting for child to start")
}

// teeStream reads in 8 KiB chunks, writes each chunk verbatim to the
// per-stream log immediately, and line-buffers a copy into full.log
// under fullLogMu so stdout/stderr interleave atomically line-by-line.
func teeStream(wg *sync.WaitGroup, fullLogMu *sync.Mutex, r io.ReadCloser, streamLog, fullLog *os.File, label string) {
	defer wg.Done()
	defer r.Close()

	const chunkSize = 8 * 1024
	chunk := make([]byte, chunkSize)
	var lineBuf []byte

	emitLine := func(line []byte) {
		fullLogMu.Lock()
		defer fullLogMu.Unlock()
		prefix := fmt.Sprintf("%s [%s] ", time.Now().UTC().Format(time.RFC3339), label)
		fullLog.WriteString(prefix)
		fullLog.Write(line)
		fullLog.Write([]byte("\n"))
	}

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			streamLog.Write(chunk[:n])
			lineBuf = append(lineBuf, chunk[:n]...)
			for {
				idx := indexByte(lineBuf, '\n')
				if idx < 0 {
					break
				}
				emitLine(lineBuf[:idx])
				lineBuf = lineBuf[idx+1:]
			}
		}
		if err != nil {
			if len(lineBuf) > 0 {
				emitLine(lineBuf)
			}
			return
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// watch enforces the timeout/kill-after deadline and periodically
// touches updated_at so a long-running job's state.json doesn't go
// stale between the start and terminal writes.
func watch(wg *sync.WaitGroup, logger exlog.Logger, h *jobstore.Handle, child *procgroup.Child, childExited <-chan struct{}, cfg Config) {
	defer wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	lastProgress := start
	signaled := false

	for {
		select {
		case <-childExited:
			return
		case <-ticker.C:
			now := time.Now()

			if !signaled && cfg.TimeoutMs > 0 && now.Sub(start) >= time.Duration(cfg.TimeoutMs)*time.Millisecond {
				signaled = true
				logger.Warn("[supervisor] timeout elapsed, interrupting job %s", cfg.JobID)
				if err := child.Interrupt(); err != nil {
					logger.Error("[supervisor] interrupt failed: %v", err)
				}
				if cfg.KillAfterMs > 0 {
					go func() {
						select {
						case <-childExited:
						case <-time.After(time.Duration(cfg.KillAfterMs) * time.Millisecond):
							logger.Warn("[supervisor] kill-after elapsed, terminating job %s", cfg.JobID)
							child.Terminate()
						}
					}()
				} else {
					child.Terminate()
				}
			}

			if cfg.ProgressEveryMs > 0 && now.Sub(lastProgress) >= time.Duration(cfg.ProgressEveryMs)*time.Millisecond {
				lastProgress = now
				state, ok, err := h.ReadState()
				if err != nil || !ok {
					continue
				}
				state.UpdatedAt = now.UTC().Format(time.RFC3339)
				if err := h.WriteStateAtomic(state); err != nil {
					logger.Debug("[supervisor] progress write failed: %v", err)
				}
			}
		}
	}
}

// failSetup is invoked when the supervisor cannot establish the
// tree-termination guarantee (pipe/log/env setup failure before the
// child is even running): it records status=failed so run's handshake
// surfaces the error instead of hanging.
func failSetup(logger exlog.Logger, h *jobstore.Handle, jobID string, startedAt time.Time, cause error) error {
	logger.Error("[supervisor] setup failed: %v", cause)

	now := time.Now().UTC()
	state := jobstore.State{
		JobID:      jobID,
		Status:     jobstore.StatusFailed,
		StartedAt:  startedAt.UTC().Format(time.RFC3339),
		FinishedAt: strPtr(now.Format(time.RFC3339)),
		UpdatedAt:  now.Format(time.RFC3339),
	}
	if err := h.WriteStateAtomic(state); err != nil {
		logger.Error("[supervisor] writing failed state: %v", err)
	}
	return cause
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
