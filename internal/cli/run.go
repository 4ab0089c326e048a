package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/agentexec/agent-exec/internal/exlog"
	"github.com/agentexec/agent-exec/internal/exlog/scrub"
	"github.com/agentexec/agent-exec/internal/jobenv"
	"github.com/agentexec/agent-exec/internal/jobstore"
	"github.com/agentexec/agent-exec/internal/tailengine"
	"github.com/buildkite/roko"
	ucli "github.com/urfave/cli"
)

const handshakeTimeout = 5 * time.Second
const handshakePoll = 10 * time.Millisecond
const snapshotPoll = 15 * time.Millisecond

var RunCommand = ucli.Command{
	Name:      "run",
	Usage:     "Spawn a detached command and report a snapshot of its output",
	ArgsUsage: "[opts] -- <cmd> [args...]",
	Flags: []ucli.Flag{
		ucli.IntFlag{Name: "snapshot-after", Value: 10_000, Usage: "milliseconds to wait before snapshotting output, clamped to 10000"},
		ucli.IntFlag{Name: "tail-lines", Value: 50, Usage: "lines of tail to include in the snapshot"},
		ucli.IntFlag{Name: "max-bytes", Value: 65_536, Usage: "bytes of tail to include in the snapshot"},
		ucli.IntFlag{Name: "timeout", Usage: "milliseconds after which the job is interrupted"},
		ucli.IntFlag{Name: "kill-after", Usage: "milliseconds after an interrupt before a hard kill"},
		ucli.StringFlag{Name: "cwd", Usage: "working directory for the child"},
		ucli.StringSliceFlag{Name: "env", Usage: "KEY=VALUE, repeatable, applied after env files"},
		ucli.StringSliceFlag{Name: "env-file", Usage: "path to a KEY=VALUE file, repeatable"},
		ucli.BoolFlag{Name: "inherit-env", Usage: "inherit the caller's environment (default)"},
		ucli.BoolFlag{Name: "no-inherit-env", Usage: "start with an empty environment"},
		ucli.StringSliceFlag{Name: "mask", Usage: "env key whose value should never appear in output, repeatable"},
		ucli.StringFlag{Name: "log", Usage: "override the full.log path"},
		ucli.IntFlag{Name: "progress-every", Usage: "milliseconds between state.json progress touch-ups"},
		ucli.BoolFlag{Name: "wait", Usage: "block until the job reaches a terminal state"},
		ucli.IntFlag{Name: "wait-poll-ms", Value: 200, Usage: "poll interval while --wait is set"},
	},
	Action: func(c *ucli.Context) error {
		opts, err := ParseRunOptions(c)
		if err != nil {
			return err
		}
		return runAction(c.App.Writer, opts)
	},
}

func runAction(w io.Writer, opts RunOptions) error {
	logger := exlog.NewConsoleLogger(exlog.NewTextPrinter(os.Stderr), os.Exit)

	if err := createRootLocked(opts.Root); err != nil {
		return PrintInternalError(w, fmt.Errorf("creating jobs root: %w", err))
	}

	now := time.Now()
	jobID, err := jobstore.NewID(now)
	if err != nil {
		return PrintInternalError(w, err)
	}

	envKeys, envVarsMasked, err := buildMetaEnv(opts)
	if err != nil {
		return PrintInternalError(w, err)
	}
	maskSecrets, maskedTooShort := maskValuesForScrub(opts)
	for _, k := range maskedTooShort {
		logger.Warn("[run] --mask %s: value shorter than %d bytes, not scrubbed from output", k, scrub.RedactLengthMin)
	}

	meta := jobstore.Meta{
		JobID:         jobID,
		SchemaVersion: jobstore.SchemaVersion,
		Command:       opts.Command,
		CreatedAt:     now.UTC().Format(time.RFC3339),
		Root:          opts.Root,
		EnvKeys:       envKeys,
		EnvVars:       envVarsMasked,
		Mask:          opts.Mask,
		Cwd:           opts.Cwd,
		FullLogPath:   opts.LogPath,
	}

	h, err := jobstore.Create(opts.Root, jobID, meta)
	if err != nil {
		return PrintInternalError(w, err)
	}
	if err := h.PreCreateLogs(opts.LogPath); err != nil {
		return PrintInternalError(w, err)
	}

	exePath, err := os.Executable()
	if err != nil {
		return PrintInternalError(w, fmt.Errorf("resolving own executable path: %w", err))
	}

	superviseArgs := buildSuperviseArgs(jobID, opts)
	superviseCmd := exec.Command(exePath, superviseArgs...)
	superviseCmd.Stdin = nil
	superviseCmd.Stdout = nil
	superviseCmd.Stderr = nil
	detachSupervisor(superviseCmd)

	if err := superviseCmd.Start(); err != nil {
		return PrintInternalError(w, fmt.Errorf("spawning supervisor: %w", err))
	}
	supervisorPid := superviseCmd.Process.Pid
	// The supervisor is meant to outlive this process; releasing it
	// avoids leaving a zombie behind once it exits.
	_ = superviseCmd.Process.Release()

	initState := jobstore.InitState(jobID, supervisorPid, now, "")
	if err := h.WriteStateAtomic(initState); err != nil {
		return PrintInternalError(w, err)
	}

	state := awaitHandshake(h, supervisorPid)
	if state.Status == jobstore.StatusFailed {
		return PrintError(w, 1, CodeInternalError, "supervisor setup failed", false)
	}

	resp := NewRunResponse()
	resp.JobID = jobID
	resp.EnvVars = envVarsMasked

	if opts.Wait {
		state = pollUntilTerminal(h, opts.WaitPollMs, 0)
		resp.State = string(state.Status)
		resp.ExitCode = state.ExitCode
		resp.Snapshot = snapshotFor(h, opts.TailLines, opts.MaxBytes)
		return PrintEnvelopeMasked(w, resp, maskSecrets)
	}

	waited := snapshotWait(h, opts.SnapshotAfterMs)
	state, _, _ = h.ReadState()
	resp.State = string(state.Status)
	resp.ExitCode = state.ExitCode
	resp.WaitedMs = &waited
	resp.Snapshot = snapshotFor(h, opts.TailLines, opts.MaxBytes)

	return PrintEnvelopeMasked(w, resp, maskSecrets)
}

// maskValuesForScrub resolves opts.Mask's keys against the same
// environment the child process will actually run with (inherited OS
// environment plus env files/args, mirroring BuildEnvOpts) so the real
// secret values - not meta.json's already-masked copies - are available
// to scrub the snapshot fields of run's own JSON response.
func maskValuesForScrub(opts RunOptions) (secrets []string, tooShort []string) {
	if len(opts.Mask) == 0 {
		return nil, nil
	}
	env, err := jobenv.Build(opts.BuildEnvOpts())
	if err != nil {
		return nil, nil
	}
	return scrub.ValuesToMask(opts.Mask, env.ToMap())
}

// buildMetaEnv derives env_keys (names only, from --env and --env-file,
// masking is irrelevant to key derivation) and the masked env_vars list
// persisted to meta.json - masking is the front-end's job; the
// supervisor gets real values via buildSuperviseArgs, never through
// meta.json.
func buildMetaEnv(opts RunOptions) (envKeys []string, envVarsMasked []string, err error) {
	built, err := jobenv.Build(jobenv.BuildOpts{
		InheritEnv: false, // env_keys/env_vars only ever reflect what the user passed explicitly
		EnvFiles:   opts.EnvFiles,
		EnvArgs:    opts.EnvArgs,
	})
	if err != nil {
		return nil, nil, err
	}

	envKeys = built.Keys()
	envVarsMasked = built.MaskedSlice(opts.Mask)
	return envKeys, envVarsMasked, nil
}

// buildSuperviseArgs encodes the full argument bundle run hands to
// _supervise: job id, root, timeout, kill-after, cwd, an optional
// full.log path override, env (files and explicit KEY=VALUE pairs -
// real values, since the supervisor runs the child for real),
// inherit-env, progress interval, and the command.
func buildSuperviseArgs(jobID string, opts RunOptions) []string {
	args := []string{
		"_supervise",
		"--job-id", jobID,
		"--root", opts.Root,
	}
	if opts.TimeoutMs > 0 {
		args = append(args, "--timeout", strconv.Itoa(opts.TimeoutMs))
	}
	if opts.KillAfterMs > 0 {
		args = append(args, "--kill-after", strconv.Itoa(opts.KillAfterMs))
	}
	if opts.Cwd != "" {
		args = append(args, "--cwd", opts.Cwd)
	}
	if opts.LogPath != "" {
		args = append(args, "--log", opts.LogPath)
	}
	if opts.ProgressEveryMs > 0 {
		args = append(args, "--progress-every", strconv.Itoa(opts.ProgressEveryMs))
	}
	if opts.InheritEnv {
		args = append(args, "--inherit-env")
	} else {
		args = append(args, "--no-inherit-env")
	}
	for _, f := range opts.EnvFiles {
		args = append(args, "--env-file", f)
	}
	for _, e := range opts.EnvArgs {
		args = append(args, "--env", e)
	}
	args = append(args, "--")
	args = append(args, opts.Command...)
	return args
}

// awaitHandshake polls state.json at handshakePoll intervals for up to
// handshakeTimeout, until either the pid changes from the supervisor's
// own pid or status becomes failed. On timeout it returns the initial
// state, per the design note trading latency for simplicity.
func awaitHandshake(h *jobstore.Handle, supervisorPid int) jobstore.State {
	deadline := time.Now().Add(handshakeTimeout)
	var last jobstore.State
	// 500 attempts at a 10ms constant interval covers the 5s handshake
	// bound with room to spare; the context deadline below is the real
	// authority, this just keeps a sane upper bound on attempts.
	retrier := roko.NewRetrier(
		roko.WithMaxAttempts(500),
		roko.WithStrategy(roko.Constant(handshakePoll)),
	)
	retrier.DoWithContext(contextUntil(deadline), func(r *roko.Retrier) error {
		state, ok, err := h.ReadState()
		if err == nil && ok {
			last = state
			if state.Pid != supervisorPid || state.Status == jobstore.StatusFailed {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return nil
		}
		return fmt.Errorf("handshake not yet observed")
	})
	return last
}

// snapshotWait implements run's snapshot polling loop: every 15 ms, exit
// early if the job is no longer running, otherwise wait out the deadline.
// Output availability alone never causes early exit.
func snapshotWait(h *jobstore.Handle, snapshotAfterMs int) int64 {
	if snapshotAfterMs <= 0 {
		return 0
	}
	deadline := time.Now().Add(time.Duration(snapshotAfterMs) * time.Millisecond)
	start := time.Now()
	for time.Now().Before(deadline) {
		state, ok, err := h.ReadState()
		if err == nil && ok && state.Status != jobstore.StatusRunning {
			break
		}
		time.Sleep(snapshotPoll)
	}
	return time.Since(start).Milliseconds()
}

func pollUntilTerminal(h *jobstore.Handle, pollMs int, timeoutMs int) jobstore.State {
	if pollMs <= 0 {
		pollMs = 200
	}
	var deadline time.Time
	hasDeadline := timeoutMs > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	for {
		state, ok, err := h.ReadState()
		if err == nil && ok && state.Status != jobstore.StatusRunning {
			return state
		}
		if hasDeadline && time.Now().After(deadline) {
			return state
		}
		time.Sleep(time.Duration(pollMs) * time.Millisecond)
	}
}

func snapshotFor(h *jobstore.Handle, tailLines, maxBytes int) *Snapshot {
	stdout, errOut := tailengine.Tail(h.LogPath("stdout"), tailLines, maxBytes)
	stderr, errErr := tailengine.Tail(h.LogPath("stderr"), tailLines, maxBytes)
	if errOut != nil || errErr != nil {
		return &Snapshot{Encoding: "utf-8-lossy"}
	}
	return &Snapshot{
		StdoutTail:    stdout.Text,
		StderrTail:    stderr.Text,
		Encoding:      "utf-8-lossy",
		Truncated:     stdout.Truncated || stderr.Truncated,
		ObservedBytes: stdout.ObservedBytes + stderr.ObservedBytes,
		IncludedBytes: stdout.IncludedBytes + stderr.IncludedBytes,
	}
}

// contextUntil returns a context canceled at deadline, used to bound
// roko's retry loop during the handshake.
func contextUntil(deadline time.Time) context.Context {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	_ = cancel // context.WithDeadline's own timer cancels it; nothing else to release here
	return ctx
}
