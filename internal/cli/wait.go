package cli

import (
	"errors"

	"github.com/agentexec/agent-exec/internal/jobstore"
	ucli "github.com/urfave/cli"
)

var WaitCommand = ucli.Command{
	Name:      "wait",
	Usage:     "Block until a job reaches a terminal state",
	ArgsUsage: "<job-id>",
	Flags: []ucli.Flag{
		ucli.IntFlag{Name: "poll-ms", Value: 200, Usage: "interval between state.json reads"},
		ucli.IntFlag{Name: "timeout-ms", Usage: "give up and report the current state after this many milliseconds (0 = no timeout)"},
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

		pollMs := c.Int("poll-ms")
		timeoutMs := c.Int("timeout-ms")
		state := pollUntilTerminal(h, pollMs, timeoutMs)

		resp := NewWaitResponse()
		resp.JobID = jobID
		resp.State = string(state.Status)
		resp.ExitCode = state.ExitCode
		return PrintEnvelope(c.App.Writer, resp)
	},
}
