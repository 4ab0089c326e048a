// Package jobstore is the on-disk representation of a job: one directory
// per job holding an immutable meta.json, a repeatedly-replaced
// state.json, and three append-only log files. Every write that must
// never be observed half-finished goes through a temp-file-plus-rename,
// using internal/tempfile for the temp file itself.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentexec/agent-exec/internal/tempfile"
)

const SchemaVersion = "0.1"

// Status is a job's lifecycle state. All terminal states are absorbing.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusKilled  Status = "killed"
	StatusFailed  Status = "failed"
	// StatusUnknown is synthesized by list/status when state.json is
	// missing; it is never written to disk.
	StatusUnknown Status = "unknown"
)

// Meta is meta.json: written once at job creation, never mutated again.
type Meta struct {
	JobID         string   `json:"job_id"`
	SchemaVersion string   `json:"schema_version"`
	Command       []string `json:"command"`
	CreatedAt     string   `json:"created_at"`
	Root          string   `json:"root"`
	EnvKeys       []string `json:"env_keys"`
	EnvVars       []string `json:"env_vars,omitempty"`
	Mask          []string `json:"mask,omitempty"`
	Cwd           string   `json:"cwd,omitempty"`
	FullLogPath   string   `json:"full_log_path,omitempty"`
}

// State is state.json: mutated by the supervisor (and, for progress
// touch-ups, its watcher goroutine), always replaced atomically.
type State struct {
	JobID          string  `json:"job_id"`
	Status         Status  `json:"status"`
	StartedAt      string  `json:"started_at"`
	ExitCode       *int    `json:"exit_code"`
	Signal         *string `json:"signal"`
	DurationMs     *int64  `json:"duration_ms"`
	Pid            int     `json:"pid"`
	FinishedAt     *string `json:"finished_at"`
	UpdatedAt      string  `json:"updated_at"`
	WindowsJobName string  `json:"windows_job_name,omitempty"`
}

// ErrNotFound is a typed sentinel: the CLI layer maps it to
// error.code="job_not_found" instead of "internal_error".
var ErrNotFound = errors.New("job not found")

// Handle is an open job directory.
type Handle struct {
	Root  string
	JobID string
	Dir   string
}

func dirFor(root, jobID string) string {
	return filepath.Join(root, jobID)
}

// Create makes the job directory and atomically writes meta.json.
func Create(root, jobID string, meta Meta) (*Handle, error) {
	dir := dirFor(root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job directory %q: %w", dir, err)
	}

	if err := writeJSONAtomic(dir, "meta.json", meta); err != nil {
		return nil, fmt.Errorf("writing meta.json: %w", err)
	}

	return &Handle{Root: root, JobID: jobID, Dir: dir}, nil
}

// Open returns a handle to an existing job, or ErrNotFound if its
// directory (or meta.json within it) doesn't exist.
func Open(root, jobID string) (*Handle, error) {
	dir := dirFor(root, jobID)
	if _, err := os.Stat(filepath.Join(dir, "meta.json")); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("statting meta.json: %w", err)
	}
	return &Handle{Root: root, JobID: jobID, Dir: dir}, nil
}

// PreCreateLogs creates stdout.log, stderr.log, and the combined full
// log empty, satisfying the invariant that they exist as soon as run
// returns. fullLogPath overrides the default full.log location inside
// the job directory (--log); pass "" to use the default.
func (h *Handle) PreCreateLogs(fullLogPath string) error {
	for _, name := range []string{"stdout.log", "stderr.log"} {
		f, err := os.OpenFile(filepath.Join(h.Dir, name), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		f.Close()
	}

	if fullLogPath == "" {
		fullLogPath = h.FullLogPath()
	}
	if dir := filepath.Dir(fullLogPath); dir != h.Dir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for full log %q: %w", fullLogPath, err)
		}
	}
	f, err := os.OpenFile(fullLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating full log %q: %w", fullLogPath, err)
	}
	f.Close()
	return nil
}

func (h *Handle) LogPath(stream string) string {
	return filepath.Join(h.Dir, stream+".log")
}

func (h *Handle) FullLogPath() string {
	return filepath.Join(h.Dir, "full.log")
}

// ResolvedFullLogPath returns the full log path actually in effect for
// this job: meta's recorded override (--log) if one was set at create
// time, else the default full.log inside the job directory.
func (h *Handle) ResolvedFullLogPath(meta Meta) string {
	if meta.FullLogPath != "" {
		return meta.FullLogPath
	}
	return h.FullLogPath()
}

// ReadMeta parses meta.json from disk.
func (h *Handle) ReadMeta() (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(h.Dir, "meta.json"))
	if err != nil {
		return m, fmt.Errorf("reading meta.json: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parsing meta.json: %w", err)
	}
	return m, nil
}

// ReadState parses state.json from disk. A missing file is reported via
// ok=false rather than an error, so callers (status/list) can report
// StatusUnknown instead of failing the whole request.
func (h *Handle) ReadState() (state State, ok bool, err error) {
	b, err := os.ReadFile(filepath.Join(h.Dir, "state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("reading state.json: %w", err)
	}
	if err := json.Unmarshal(b, &state); err != nil {
		return State{}, false, fmt.Errorf("parsing state.json: %w", err)
	}
	return state, true, nil
}

// WriteStateAtomic replaces state.json via temp-file-plus-rename in the
// same directory, so a concurrent reader never observes a half-written
// file.
func (h *Handle) WriteStateAtomic(state State) error {
	return writeJSONAtomic(h.Dir, "state.json", state)
}

// InitState writes the first state.json: status=running, pid set to the
// supervisor's own pid (the child pid isn't known yet), started_at and
// updated_at both set to now. windowsJobName, if non-empty, is recorded
// before the supervisor confirms the handshake.
func InitState(jobID string, supervisorPid int, startedAt time.Time, windowsJobName string) State {
	now := startedAt.UTC().Format(time.RFC3339)
	return State{
		JobID:          jobID,
		Status:         StatusRunning,
		StartedAt:      now,
		Pid:            supervisorPid,
		UpdatedAt:      now,
		WindowsJobName: windowsJobName,
	}
}

func writeJSONAtomic(dir, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	tmp, err := tempfile.New(
		tempfile.WithDir(dir),
		tempfile.WithName(name),
		tempfile.KeepingExtension(),
		tempfile.WithPerms(0o644),
	)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file into place for %s: %w", name, err)
	}
	return nil
}

// List enumerates direct subdirectories of root as job ids. A missing
// root is reported as an empty list, not an error.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading root %q: %w", root, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
