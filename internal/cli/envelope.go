package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentexec/agent-exec/internal/exlog/scrub"
	"github.com/agentexec/agent-exec/internal/jobstore"
)

const SchemaVersion = jobstore.SchemaVersion

// ErrorDetail is the body of an error envelope.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// errorEnvelope is the on-wire shape of a failed invocation.
type errorEnvelope struct {
	SchemaVersion string      `json:"schema_version"`
	OK            bool        `json:"ok"`
	Type          string      `json:"type"`
	Error         ErrorDetail `json:"error"`
}

// Error codes from the external-interfaces error taxonomy. Every other
// failure in a query command becomes internalError - only the job store's
// NotFound sentinel is distinguished.
const (
	CodeJobNotFound         = "job_not_found"
	CodeUnknownSourceScheme = "unknown_source_scheme"
	CodeInternalError       = "internal_error"
)

// PrintEnvelope marshals v as {schema_version, ok:true, type:<kind>, ...v's
// fields} and writes exactly one line to w. v must be a struct (its fields
// are flattened alongside the envelope's own via an embedded anonymous
// field at the call site - see the per-command payload types).
func PrintEnvelope(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling response envelope: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// PrintEnvelopeMasked is PrintEnvelope with a defense-in-depth pass: the
// marshaled line is run through a scrub.Redactor before being written, so
// a masked env value that slipped into the command's captured output (and
// from there into a tail/snapshot field) doesn't reach stdout verbatim
// even though the front end already replaced it with "***" in meta.json.
// secrets with no values (nil or all too-short) makes this a no-op copy.
func PrintEnvelopeMasked(w io.Writer, v any, secrets []string) error {
	if len(secrets) == 0 {
		return PrintEnvelope(w, v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling response envelope: %w", err)
	}
	b = append(b, '\n')

	redactor := scrub.NewRedactor(w, "***", secrets)
	if _, err := redactor.Write(b); err != nil {
		return err
	}
	return redactor.Flush()
}

// PrintError writes the error envelope for code/message and returns an
// ExitError carrying the given exit code, so callers can do:
//
//	return cli.PrintError(w, 1, cli.CodeJobNotFound, "job not found", false)
func PrintError(w io.Writer, exitCode int, code, message string, retryable bool) error {
	env := errorEnvelope{
		SchemaVersion: SchemaVersion,
		OK:            false,
		Type:          "error",
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
	if err := PrintEnvelope(w, env); err != nil {
		return err
	}
	return NewExitError(exitCode, fmt.Errorf("%s", message))
}

// PrintInternalError is the fallback path: any error that isn't the job
// store's NotFound sentinel becomes internal_error, exit 1.
func PrintInternalError(w io.Writer, err error) error {
	return PrintError(w, 1, CodeInternalError, err.Error(), false)
}

// PrintJobNotFound maps the job store's typed NotFound sentinel to the
// job_not_found error code instead of internal_error.
func PrintJobNotFound(w io.Writer, jobID string) error {
	return PrintError(w, 1, CodeJobNotFound, fmt.Sprintf("job %q not found", jobID), false)
}
