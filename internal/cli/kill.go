package cli

import (
	"errors"
	"strings"
	"syscall"
	"time"

	"github.com/agentexec/agent-exec/internal/jobstore"
	"github.com/agentexec/agent-exec/internal/procgroup"
	ucli "github.com/urfave/cli"
)

var KillCommand = ucli.Command{
	Name:      "kill",
	Usage:     "Signal a running job's whole process tree",
	ArgsUsage: "<job-id>",
	Flags: []ucli.Flag{
		ucli.StringFlag{Name: "signal", Value: "TERM", Usage: "TERM, INT, or KILL; unrecognized values escalate to KILL"},
	},
	Action: func(c *ucli.Context) error {
		jobID := c.Args().First()
		if jobID == "" {
			return NewExitError(2, errExpectedJobID)
		}

		root := resolveRoot(c)
		h, err := jobstore.Open(root, jobID)
		if err != nil {
			if errors.Is(err, jobstore.ErrNotFound) {
				return PrintJobNotFound(c.App.Writer, jobID)
			}
			return PrintInternalError(c.App.Writer, err)
		}

		state, ok, err := h.ReadState()
		if err != nil {
			return PrintInternalError(c.App.Writer, err)
		}

		resp := NewKillResponse()
		resp.JobID = jobID
		resp.Signal = strings.ToUpper(c.String("signal"))

		if !ok || state.Status != jobstore.StatusRunning {
			resp.NoOp = true
			return PrintEnvelope(c.App.Writer, resp)
		}

		sig := translateSignal(resp.Signal)
		var killErr error
		if sig == syscall.SIGKILL {
			killErr = procgroup.TerminateByPid(state.Pid)
		} else {
			killErr = procgroup.SignalByPid(state.Pid, sig)
		}
		if killErr != nil && !errors.Is(killErr, syscall.ESRCH) {
			return PrintInternalError(c.App.Writer, killErr)
		}

		now := time.Now().UTC()
		state.Status = jobstore.StatusKilled
		name := resp.Signal
		state.Signal = &name
		finished := now.Format(time.RFC3339)
		state.FinishedAt = &finished
		state.UpdatedAt = finished
		if err := h.WriteStateAtomic(state); err != nil {
			return PrintInternalError(c.App.Writer, err)
		}

		return PrintEnvelope(c.App.Writer, resp)
	},
}

// translateSignal maps the --signal flag to a POSIX signal; anything
// that isn't TERM or INT escalates to KILL, matching the CLI's
// "unrecognized values kill" contract.
func translateSignal(name string) syscall.Signal {
	switch name {
	case "TERM":
		return syscall.SIGTERM
	case "INT":
		return syscall.SIGINT
	default:
		return syscall.SIGKILL
	}
}
