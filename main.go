// Command agent-exec spawns, tails, and tears down detached background
// jobs so an automation agent can fire off a long-running command
// without blocking its own turn on it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentexec/agent-exec/internal/cli"
	"github.com/agentexec/agent-exec/internal/version"
)

func main() {
	app := cli.NewApp("agent-exec", version.FullVersion())

	err := app.Run(os.Args)
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code())
	}

	// A command failed before it could print its own error envelope
	// (e.g. bad flag parsing): report it on stderr and exit as a usage
	// error.
	fmt.Fprintf(os.Stderr, "agent-exec: %v\n", err)
	os.Exit(2)
}
