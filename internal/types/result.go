package types

import (
	"fmt"
	"time"
)

// Outcome is the terminal state of a single stage.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ErrorKind classifies stage and job failures for reporting.
type ErrorKind string

const (
	ErrKindValidation     ErrorKind = "VALIDATION"
	ErrKindTimeout        ErrorKind = "TIMEOUT"
	ErrKindDriverFailure  ErrorKind = "DRIVER_FAILURE"
	ErrKindCaptureFailure ErrorKind = "CAPTURE_FAILURE"
)

// StageError records why a stage failed. Cause is kept for wrapping but is
// not serialized.
type StageError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// StageResult records the outcome of one executed stage.
type StageResult struct {
	StageName string      `json:"stage_name"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
	Outcome   Outcome     `json:"outcome"`
	Attempts  int         `json:"attempts"`
	Detail    string      `json:"detail,omitempty"`    // e.g. observation summary
	MediaRef  string      `json:"media_ref,omitempty"` // opaque reference from the media sink
	Warning   string      `json:"warning,omitempty"`   // non-fatal issues, e.g. capture failures
	Error     *StageError `json:"error,omitempty"`
}

// JobStatus is the terminal status of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusCancelled:
		return true
	}
	return false
}

// JobResult is the terminal, persisted artifact of a job run. Stage results
// preserve execution order; leads are deduplicated by ID and preserve
// extraction order.
type JobResult struct {
	JobID     string        `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Stages    []StageResult `json:"stages"`
	Leads     []Lead        `json:"leads"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}
