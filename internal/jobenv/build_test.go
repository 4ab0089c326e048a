package jobenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildExplicitEnvWinsOverEnvFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envFile := filepath.Join(dir, "a.env")
	if err := os.WriteFile(envFile, []byte("# comment\n\nFOO=from-file\nBAR=keep\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := Build(BuildOpts{
		InheritEnv: false,
		EnvFiles:   []string{envFile},
		EnvArgs:    []string{"FOO=from-flag"},
	})
	if err != nil {
		t.Fatal(err)
	}

	m := env.ToMap()
	if m["FOO"] != "from-flag" {
		t.Errorf("FOO = %q, want from-flag", m["FOO"])
	}
	if m["BAR"] != "keep" {
		t.Errorf("BAR = %q, want keep", m["BAR"])
	}
}

func TestBuildNoInheritStartsEmpty(t *testing.T) {
	t.Setenv("AGENT_EXEC_TEST_MARKER", "present")

	env, err := Build(BuildOpts{InheritEnv: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := env.ToMap()["AGENT_EXEC_TEST_MARKER"]; ok {
		t.Fatal("expected no-inherit environment to exclude OS environment")
	}
}

func TestBuildInheritCarriesOSEnv(t *testing.T) {
	t.Setenv("AGENT_EXEC_TEST_MARKER", "present")

	env, err := Build(BuildOpts{InheritEnv: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := env.ToMap()["AGENT_EXEC_TEST_MARKER"]; !ok {
		t.Fatal("expected inherit environment to include OS environment")
	}
}

func TestMaskedSliceReplacesValueNotKey(t *testing.T) {
	t.Parallel()

	env := FromSlice([]string{"SECRET=topsecret", "PLAIN=visible"})
	masked := env.MaskedSlice([]string{"SECRET"})

	want := map[string]string{"SECRET": "***", "PLAIN": "visible"}
	got := map[string]string{}
	for _, kv := range masked {
		k, v, _ := Split(kv)
		got[k] = v
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestKeysNeverContainsValues(t *testing.T) {
	t.Parallel()

	env := FromSlice([]string{"SECRET=topsecret"})
	keys := env.Keys()

	if len(keys) != 1 || keys[0] != "SECRET" {
		t.Fatalf("Keys() = %v, want [SECRET]", keys)
	}
	for _, k := range keys {
		if k == "topsecret" {
			t.Fatal("Keys() leaked a value")
		}
	}
}
