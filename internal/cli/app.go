// Package cli implements agent-exec's command surface: a small set of
// urfave/cli commands (run, status, tail, wait, kill, list) plus the
// hidden _supervise verb run re-execs itself as. Every command prints
// exactly one JSON envelope to stdout and never anything else there;
// stderr carries only diagnostics from internal/exlog.
package cli

import (
	"fmt"

	ucli "github.com/urfave/cli"
)

const appHelpTemplate = `Usage:
  {{.Name}} <command> [options...]

Available commands are:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}

Use "{{.Name}} <command> --help" for more information about a command.
`

const commandHelpTemplate = `{{.Description}}

Options:

{{range .VisibleFlags}}  {{.}}
{{ end -}}
`

// NewApp wires up every subcommand. version is the value printed by
// --version (see internal/version.FullVersion).
func NewApp(name, version string) *ucli.App {
	ucli.AppHelpTemplate = appHelpTemplate
	ucli.CommandHelpTemplate = commandHelpTemplate

	app := ucli.NewApp()
	app.Name = name
	app.Version = version
	app.Usage = "run and supervise detached background jobs for automation agents"
	app.Flags = []ucli.Flag{
		ucli.StringFlag{
			Name:   "root",
			Usage:  "jobs root directory (default: $AGENT_EXEC_ROOT, $XDG_DATA_HOME/agent-exec/jobs, or a platform default)",
			EnvVar: "AGENT_EXEC_ROOT",
		},
	}
	app.Commands = []ucli.Command{
		RunCommand,
		StatusCommand,
		TailCommand,
		WaitCommand,
		KillCommand,
		ListCommand,
		SuperviseCommand,
	}

	app.CommandNotFound = func(c *ucli.Context, command string) {
		fmt.Fprintf(c.App.ErrWriter, "%s: unknown subcommand %q\n", c.App.Name, command)
		fmt.Fprintf(c.App.ErrWriter, "Run '%s --help' for usage.\n", c.App.Name)
	}

	return app
}
