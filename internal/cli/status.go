package cli

import (
	"errors"

	"github.com/agentexec/agent-exec/internal/jobstore"
	ucli "github.com/urfave/cli"
)

var StatusCommand = ucli.Command{
	Name:      "status",
	Usage:     "Report a job's current lifecycle state",
	ArgsUsage: "<job-id>",
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

		resp := NewStatusResponse()
		resp.JobID = jobID
		if !ok {
			resp.State = string(jobstore.StatusUnknown)
			return PrintEnvelope(c.App.Writer, resp)
		}

		resp.State = string(state.Status)
		resp.ExitCode = state.ExitCode
		resp.StartedAt = state.StartedAt
		resp.FinishedAt = state.FinishedAt
		return PrintEnvelope(c.App.Writer, resp)
	},
}

var errExpectedJobID = errors.New("expected a job id argument")
