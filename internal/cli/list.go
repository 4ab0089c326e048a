package cli

import (
	"fmt"
	"sort"

	"github.com/agentexec/agent-exec/internal/jobstore"
	ucli "github.com/urfave/cli"
)

var ListCommand = ucli.Command{
	Name:  "list",
	Usage: "List known jobs, newest first",
	Flags: []ucli.Flag{
		ucli.StringFlag{Name: "state", Usage: "filter to one status: running, exited, killed, failed, unknown"},
		ucli.StringFlag{Name: "cwd", Usage: "filter to jobs created with this working directory"},
		ucli.BoolFlag{Name: "all", Usage: "don't filter by working directory"},
		ucli.IntFlag{Name: "limit", Usage: "maximum jobs to return (0 = unlimited)"},
	},
	Action: func(c *ucli.Context) error {
		if c.Bool("all") && c.String("cwd") != "" {
			return NewExitError(2, fmt.Errorf("--all and --cwd are mutually exclusive"))
		}

		root := resolveRoot(c)
		ids, err := jobstore.List(root)
		if err != nil {
			return PrintInternalError(c.App.Writer, err)
		}

		// --all disables the cwd filter; otherwise --cwd <path> is used,
		// falling back to the current directory.
		var cwdFilter string
		if !c.Bool("all") {
			cwdFilter = c.String("cwd")
			if cwdFilter == "" {
				cwdFilter = currentWorkingDirectory()
			}
		}
		stateFilter := c.String("state")

		resp := NewListResponse()
		entries := make([]ListEntry, 0, len(ids))

		for _, id := range ids {
			h, err := jobstore.Open(root, id)
			if err != nil {
				resp.Skipped++
				continue
			}
			meta, err := h.ReadMeta()
			if err != nil {
				resp.Skipped++
				continue
			}

			state, ok, err := h.ReadState()
			if err != nil {
				resp.Skipped++
				continue
			}
			status := jobstore.StatusUnknown
			startedAt := meta.CreatedAt
			if ok {
				status = state.Status
				startedAt = state.StartedAt
			}

			if cwdFilter != "" && meta.Cwd != cwdFilter {
				continue
			}
			if stateFilter != "" && string(status) != stateFilter {
				continue
			}

			entries = append(entries, ListEntry{
				JobID:     id,
				State:     string(status),
				StartedAt: startedAt,
				Cwd:       meta.Cwd,
			})
		}

		sort.Slice(entries, func(i, j int) bool {
			if entries[i].StartedAt != entries[j].StartedAt {
				return entries[i].StartedAt > entries[j].StartedAt
			}
			return entries[i].JobID > entries[j].JobID
		})

		limit := c.Int("limit")
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
			resp.Truncated = true
		}

		resp.Jobs = entries
		return PrintEnvelope(c.App.Writer, resp)
	},
}
