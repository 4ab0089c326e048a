package cli

import (
	"errors"

	"github.com/agentexec/agent-exec/internal/jobstore"
	"github.com/agentexec/agent-exec/internal/tailengine"
	ucli "github.com/urfave/cli"
)

var TailCommand = ucli.Command{
	Name:      "tail",
	Usage:     "Read the tail of a job's captured output",
	ArgsUsage: "<job-id>",
	Flags: []ucli.Flag{
		ucli.IntFlag{Name: "tail-lines", Value: 50, Usage: "lines of tail to return"},
		ucli.IntFlag{Name: "max-bytes", Value: 65_536, Usage: "bytes of tail to return"},
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

		meta, err := h.ReadMeta()
		if err != nil {
			return PrintInternalError(c.App.Writer, err)
		}

		tailLines := c.Int("tail-lines")
		maxBytes := c.Int("max-bytes")

		stdout, err := tailengine.Tail(h.LogPath("stdout"), tailLines, maxBytes)
		if err != nil {
			return PrintInternalError(c.App.Writer, err)
		}
		stderr, err := tailengine.Tail(h.LogPath("stderr"), tailLines, maxBytes)
		if err != nil {
			return PrintInternalError(c.App.Writer, err)
		}

		resp := NewTailResponse()
		resp.JobID = jobID
		resp.Stdout = stdout.Text
		resp.Stderr = stderr.Text
		resp.Encoding = "utf-8-lossy"
		resp.Truncated = stdout.Truncated || stderr.Truncated
		resp.ObservedBytes = stdout.ObservedBytes + stderr.ObservedBytes
		resp.IncludedBytes = stdout.IncludedBytes + stderr.IncludedBytes
		resp.StdoutPath = h.LogPath("stdout")
		resp.StderrPath = h.LogPath("stderr")
		resp.FullPath = h.ResolvedFullLogPath(meta)
		return PrintEnvelope(c.App.Writer, resp)
	},
}
