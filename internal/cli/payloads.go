package cli

// envelope is the common prefix of every successful response; anonymous
// embedding flattens its fields alongside each payload's own when
// marshaled to JSON.
type envelope struct {
	SchemaVersion string `json:"schema_version"`
	OK            bool   `json:"ok"`
	Type          string `json:"type"`
}

func newEnvelope(kind string) envelope {
	return envelope{SchemaVersion: SchemaVersion, OK: true, Type: kind}
}

// Snapshot is the tail of both streams captured by run before it prints,
// or by tail proper.
type Snapshot struct {
	StdoutTail    string `json:"stdout_tail"`
	StderrTail    string `json:"stderr_tail"`
	Encoding      string `json:"encoding"`
	Truncated     bool   `json:"truncated"`
	ObservedBytes int64  `json:"observed_bytes"`
	IncludedBytes int64  `json:"included_bytes"`
}

// RunResponse is run's envelope.
type RunResponse struct {
	envelope
	JobID    string    `json:"job_id"`
	State    string    `json:"state"`
	WaitedMs *int64    `json:"waited_ms,omitempty"`
	ExitCode *int      `json:"exit_code,omitempty"`
	EnvVars  []string  `json:"env_vars,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

func NewRunResponse() RunResponse {
	return RunResponse{envelope: newEnvelope("run")}
}

// StatusResponse is status's envelope.
type StatusResponse struct {
	envelope
	JobID      string  `json:"job_id"`
	State      string  `json:"state"`
	ExitCode   *int    `json:"exit_code"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at"`
}

func NewStatusResponse() StatusResponse {
	return StatusResponse{envelope: newEnvelope("status")}
}

// TailResponse is tail's envelope.
type TailResponse struct {
	envelope
	JobID         string `json:"job_id"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	Encoding      string `json:"encoding"`
	Truncated     bool   `json:"truncated"`
	ObservedBytes int64  `json:"observed_bytes"`
	IncludedBytes int64  `json:"included_bytes"`
	StdoutPath    string `json:"stdout_path"`
	StderrPath    string `json:"stderr_path"`
	FullPath      string `json:"full_path"`
}

func NewTailResponse() TailResponse {
	return TailResponse{envelope: newEnvelope("tail")}
}

// WaitResponse is wait's envelope.
type WaitResponse struct {
	envelope
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	ExitCode *int   `json:"exit_code"`
}

func NewWaitResponse() WaitResponse {
	return WaitResponse{envelope: newEnvelope("wait")}
}

// KillResponse is kill's envelope.
type KillResponse struct {
	envelope
	JobID  string `json:"job_id"`
	Signal string `json:"signal"`
	NoOp   bool   `json:"no_op"`
}

func NewKillResponse() KillResponse {
	return KillResponse{envelope: newEnvelope("kill")}
}

// ListEntry is one job summary within a list response.
type ListEntry struct {
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	StartedAt string `json:"started_at"`
	Cwd       string `json:"cwd,omitempty"`
}

// ListResponse is list's envelope.
type ListResponse struct {
	envelope
	Jobs      []ListEntry `json:"jobs"`
	Skipped   int         `json:"skipped"`
	Truncated bool        `json:"truncated"`
}

func NewListResponse() ListResponse {
	return ListResponse{envelope: newEnvelope("list")}
}
