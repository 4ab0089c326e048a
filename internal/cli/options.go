package cli

import (
	"fmt"
	"os"

	"github.com/agentexec/agent-exec/internal/jobenv"
	"github.com/agentexec/agent-exec/internal/pathresolve"
	ucli "github.com/urfave/cli"
)

// RunOptions collects run's flags, already validated.
type RunOptions struct {
	Root            string
	Command         []string
	SnapshotAfterMs int
	TailLines       int
	MaxBytes        int
	TimeoutMs       int
	KillAfterMs     int
	Cwd             string
	EnvArgs         []string
	EnvFiles        []string
	InheritEnv      bool
	Mask            []string
	LogPath         string
	ProgressEveryMs int
	Wait            bool
	WaitPollMs      int
}

// resolveRoot returns the jobs root for any subcommand: the only flag
// status/tail/wait/kill/list share is the app-level --root.
func resolveRoot(c *ucli.Context) string {
	return pathresolve.Root(c.GlobalString("root"))
}

// ParseRunOptions validates and builds a RunOptions from an urfave/cli
// context, returning a usage ExitError (exit 2) for anything the CLI
// parser itself can't reject declaratively.
func ParseRunOptions(c *ucli.Context) (RunOptions, error) {
	inherit := c.Bool("inherit-env")
	noInherit := c.Bool("no-inherit-env")
	if inherit && noInherit {
		return RunOptions{}, NewExitError(2, fmt.Errorf("--inherit-env and --no-inherit-env are mutually exclusive"))
	}

	args := []string(c.Args())
	if len(args) == 0 {
		return RunOptions{}, NewExitError(2, fmt.Errorf("run requires a command after --"))
	}

	snapshotAfter := clampSnapshotAfter(c.Int("snapshot-after"), c.IsSet("snapshot-after"))

	tailLines := c.Int("tail-lines")
	if !c.IsSet("tail-lines") {
		tailLines = 50
	}
	maxBytes := c.Int("max-bytes")
	if !c.IsSet("max-bytes") {
		maxBytes = 65_536
	}
	progressEvery := c.Int("progress-every")
	waitPollMs := c.Int("wait-poll-ms")
	if waitPollMs <= 0 {
		waitPollMs = 200
	}

	return RunOptions{
		Root:            resolveRoot(c),
		Command:         args,
		SnapshotAfterMs: snapshotAfter,
		TailLines:       tailLines,
		MaxBytes:        maxBytes,
		TimeoutMs:       c.Int("timeout"),
		KillAfterMs:     c.Int("kill-after"),
		Cwd:             c.String("cwd"),
		EnvArgs:         c.StringSlice("env"),
		EnvFiles:        c.StringSlice("env-file"),
		InheritEnv:      !noInherit,
		Mask:            c.StringSlice("mask"),
		LogPath:         c.String("log"),
		ProgressEveryMs: progressEvery,
		Wait:            c.Bool("wait"),
		WaitPollMs:      waitPollMs,
	}, nil
}

// BuildEnvOpts turns a RunOptions' env-related fields into the
// jobenv.BuildOpts the supervisor uses to materialize the child's
// environment.
func (o RunOptions) BuildEnvOpts() jobenv.BuildOpts {
	return jobenv.BuildOpts{
		InheritEnv: o.InheritEnv,
		EnvFiles:   o.EnvFiles,
		EnvArgs:    o.EnvArgs,
	}
}

// clampSnapshotAfter applies run's snapshot-after bounds. An unset flag
// falls back to the 10s default; an explicit value is clamped to
// [0, 10000] - notably an explicit 0 flows through unchanged (spec's
// snapshot_after=0 boundary case), it is not treated as "unset".
func clampSnapshotAfter(ms int, isSet bool) int {
	if !isSet {
		return 10_000
	}
	if ms < 0 {
		return 0
	}
	if ms > 10_000 {
		return 10_000
	}
	return ms
}

// currentWorkingDirectory is used as list's default --cwd filter.
func currentWorkingDirectory() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
