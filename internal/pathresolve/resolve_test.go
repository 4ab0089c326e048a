package pathresolve_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/agentexec/agent-exec/internal/pathresolve"
)

func TestRootExplicitFlagWins(t *testing.T) {
	t.Setenv("AGENT_EXEC_ROOT", "/from/env")
	t.Setenv("XDG_DATA_HOME", "/from/xdg")

	if got, want := pathresolve.Root("/from/flag"), "/from/flag"; got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestRootEnvVarBeatsXDG(t *testing.T) {
	t.Setenv("AGENT_EXEC_ROOT", "/from/env")
	t.Setenv("XDG_DATA_HOME", "/from/xdg")

	if got, want := pathresolve.Root(""), "/from/env"; got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestRootXDGBeatsPlatformDefault(t *testing.T) {
	t.Setenv("AGENT_EXEC_ROOT", "")
	t.Setenv("XDG_DATA_HOME", "/from/xdg")

	want := filepath.Join("/from/xdg", "agent-exec", "jobs")
	if got := pathresolve.Root(""); got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestRootFallsBackToPlatformDefault(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("platform default path differs on windows")
	}
	t.Setenv("AGENT_EXEC_ROOT", "")
	t.Setenv("XDG_DATA_HOME", "")

	got := pathresolve.Root("")
	if filepath.Base(got) != "jobs" {
		t.Errorf("Root() = %q, want a path ending in .../agent-exec/jobs", got)
	}
}
