package cli

import (
	"fmt"
	"os"

	"github.com/agentexec/agent-exec/internal/exlog"
	"github.com/agentexec/agent-exec/internal/jobenv"
	"github.com/agentexec/agent-exec/internal/supervisor"
	ucli "github.com/urfave/cli"
)

// SuperviseCommand is the hidden verb run spawns itself as: it never
// appears in --help and is never invoked by a human directly. Its
// action blocks for the lifetime of the supervised child.
var SuperviseCommand = ucli.Command{
	Name:   "_supervise",
	Hidden: true,
	Flags: []ucli.Flag{
		ucli.StringFlag{Name: "job-id"},
		ucli.StringFlag{Name: "root"},
		ucli.StringFlag{Name: "cwd"},
		ucli.StringFlag{Name: "log"},
		ucli.IntFlag{Name: "timeout"},
		ucli.IntFlag{Name: "kill-after"},
		ucli.IntFlag{Name: "progress-every"},
		ucli.BoolFlag{Name: "inherit-env"},
		ucli.BoolFlag{Name: "no-inherit-env"},
		ucli.StringSliceFlag{Name: "env"},
		ucli.StringSliceFlag{Name: "env-file"},
	},
	Action: func(c *ucli.Context) error {
		jobID := c.String("job-id")
		root := c.String("root")
		if jobID == "" || root == "" {
			return NewExitError(2, fmt.Errorf("_supervise requires --job-id and --root"))
		}

		command := []string(c.Args())
		if len(command) == 0 {
			return NewExitError(2, fmt.Errorf("_supervise requires a command after --"))
		}

		logger := exlog.NewConsoleLogger(exlog.NewTextPrinter(os.Stderr), os.Exit)

		cfg := supervisor.Config{
			JobID:       jobID,
			Root:        root,
			Command:     command,
			Dir:         c.String("cwd"),
			FullLogPath: c.String("log"),
			EnvOpts: jobenv.BuildOpts{
				InheritEnv: !c.Bool("no-inherit-env"),
				EnvFiles:   c.StringSlice("env-file"),
				EnvArgs:    c.StringSlice("env"),
			},
			TimeoutMs:       c.Int("timeout"),
			KillAfterMs:     c.Int("kill-after"),
			ProgressEveryMs: c.Int("progress-every"),
		}

		if err := supervisor.Run(logger, cfg); err != nil {
			logger.Error("[_supervise] %v", err)
			return NewExitError(1, err)
		}
		return nil
	},
}
