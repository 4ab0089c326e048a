// Package pathresolve locates the jobs root directory used by every
// subcommand: an explicit CLI flag wins, then an environment variable,
// then XDG, then a platform default. Resolution never fails - a caller
// always gets back a usable path, falling back to a literal default if
// every other signal (including the user's home directory) is missing.
package pathresolve

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	rootEnvVar    = "AGENT_EXEC_ROOT"
	xdgDataEnvVar = "XDG_DATA_HOME"

	// fallbackRoot is returned when every other resolution step fails,
	// e.g. os.UserHomeDir errors out in a stripped-down environment.
	fallbackRoot = "~/.local/share/agent-exec/jobs"
)

// Root resolves the jobs root in priority order:
//  1. explicit, non-empty flagRoot (the CLI's --root)
//  2. AGENT_EXEC_ROOT, if set and non-empty
//  3. $XDG_DATA_HOME/agent-exec/jobs, if XDG_DATA_HOME is set and non-empty
//  4. the platform default under the user's home directory
//
// It never returns an error; total failure yields the literal fallbackRoot.
func Root(flagRoot string) string {
	if flagRoot != "" {
		return flagRoot
	}
	if v := os.Getenv(rootEnvVar); v != "" {
		return v
	}
	if v := os.Getenv(xdgDataEnvVar); v != "" {
		return filepath.Join(v, "agent-exec", "jobs")
	}
	if d, ok := platformDefault(); ok {
		return d
	}
	return fallbackRoot
}

func platformDefault() (string, bool) {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return filepath.Join(v, "agent-exec", "jobs"), true
		}
		return "", false
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	return filepath.Join(home, ".local", "share", "agent-exec", "jobs"), true
}
