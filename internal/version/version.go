// Package version provides agent-exec's version string, printed by
// --version.
package version

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	//go:embed VERSION
	baseVersion string

	// buildNumber is filled in at build time by passing -ldflags
	// "-X github.com/agentexec/agent-exec/internal/version.buildNumber=${BUILD_NUMBER}".
	buildNumber = "x"
)

func Version() string {
	return strings.TrimSpace(baseVersion)
}

// BuildNumber returns the build number of the CI run that built the
// binary, or "x" for a local/dev build.
func BuildNumber() string {
	return buildNumber
}

// commitInfo returns a string consisting of the commit hash and whether
// the build was made in a dirty working directory.
func commitInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "x"
	}

	dirty := ".dirty"
	var commit string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
		case "vcs.modified":
			if setting.Value == "false" {
				dirty = ""
			}
		}
	}

	return commit + dirty
}

// FullVersion includes build metadata: the build number (if any) and the
// commit hash, flagged dirty if the working tree had uncommitted changes.
func FullVersion() string {
	return fmt.Sprintf("%s+%s.%s", Version(), BuildNumber(), commitInfo())
}
