package jobstore_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentexec/agent-exec/internal/jobstore"
)

func TestCreateThenOpenRoundTrips(t *testing.T) {
	root := t.TempDir()
	id, err := jobstore.NewID(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	meta := jobstore.Meta{
		JobID:         id,
		SchemaVersion: jobstore.SchemaVersion,
		Command:       []string{"echo", "hello"},
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Root:          root,
		EnvKeys:       []string{"PATH"},
	}

	h, err := jobstore.Create(root, id, meta)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if err := h.PreCreateLogs(""); err != nil {
		t.Fatalf("PreCreateLogs() = %v", err)
	}

	for _, name := range []string{"meta.json", "stdout.log", "stderr.log", "full.log"} {
		if _, err := os.Stat(filepath.Join(root, id, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	opened, err := jobstore.Open(root, id)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	got, err := opened.ReadMeta()
	if err != nil {
		t.Fatalf("ReadMeta() = %v", err)
	}
	if got.JobID != id || len(got.Command) != 2 || got.Command[0] != "echo" {
		t.Errorf("ReadMeta() = %+v", got)
	}
}

func TestOpenMissingJobReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := jobstore.Open(root, "does-not-exist")
	if err != jobstore.ErrNotFound {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestReadStateMissingReportsNotOK(t *testing.T) {
	root := t.TempDir()
	id, _ := jobstore.NewID(time.Now())
	h, err := jobstore.Create(root, id, jobstore.Meta{JobID: id, Command: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := h.ReadState()
	if err != nil || ok {
		t.Fatalf("ReadState() = (ok=%t, err=%v), want (false, nil)", ok, err)
	}
}

func TestWriteStateAtomicNeverObservedPartial(t *testing.T) {
	root := t.TempDir()
	id, _ := jobstore.NewID(time.Now())
	h, err := jobstore.Create(root, id, jobstore.Meta{JobID: id, Command: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		state := jobstore.InitState(id, 1000+i, time.Now(), "")
		if err := h.WriteStateAtomic(state); err != nil {
			t.Fatalf("WriteStateAtomic() = %v", err)
		}

		b, err := os.ReadFile(filepath.Join(root, id, "state.json"))
		if err != nil {
			t.Fatal(err)
		}
		var got jobstore.State
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("state.json was not valid JSON after write %d: %v", i, err)
		}
		if got.Pid != 1000+i {
			t.Errorf("write %d: pid = %d, want %d", i, got.Pid, 1000+i)
		}
	}
}

func TestListOnMissingRootReturnsEmpty(t *testing.T) {
	ids, err := jobstore.List(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("List() error = %v, want nil", err)
	}
	if len(ids) != 0 {
		t.Fatalf("List() = %v, want empty", ids)
	}
}
