package cli

import (
	"encoding/json"
	"testing"
)

func TestRunResponseOmitsUnsetOptionalFields(t *testing.T) {
	resp := NewRunResponse()
	resp.JobID = "01ABC"
	resp.State = "running"

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"waited_ms", "exit_code", "env_vars", "snapshot"} {
		if _, present := decoded[field]; present {
			t.Errorf("field %q present with zero value, want omitted", field)
		}
	}
	if decoded["schema_version"] != SchemaVersion {
		t.Errorf("schema_version = %v, want %q", decoded["schema_version"], SchemaVersion)
	}
	if decoded["type"] != "run" {
		t.Errorf("type = %v, want run", decoded["type"])
	}
}

func TestRunResponseIncludesExitCodeZero(t *testing.T) {
	resp := NewRunResponse()
	zero := 0
	resp.ExitCode = &zero

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["exit_code"]; !ok || v != float64(0) {
		t.Errorf("exit_code = %v, want 0 (a zero exit code must not be dropped as a zero value)", v)
	}
}

func TestTailResponseIncludesByteMetrics(t *testing.T) {
	resp := NewTailResponse()
	resp.JobID = "01ABC"
	resp.ObservedBytes = 128
	resp.IncludedBytes = 64

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["observed_bytes"] != float64(128) {
		t.Errorf("observed_bytes = %v, want 128", decoded["observed_bytes"])
	}
	if decoded["included_bytes"] != float64(64) {
		t.Errorf("included_bytes = %v, want 64", decoded["included_bytes"])
	}
}

func TestListResponseDefaultsToEmptyNotNullJobs(t *testing.T) {
	resp := NewListResponse()
	resp.Jobs = []ListEntry{}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	jobs, ok := decoded["jobs"].([]any)
	if !ok {
		t.Fatalf("jobs = %v (%T), want an array", decoded["jobs"], decoded["jobs"])
	}
	if len(jobs) != 0 {
		t.Errorf("jobs = %v, want empty", jobs)
	}
}
