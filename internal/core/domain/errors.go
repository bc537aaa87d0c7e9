package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("export job not found")
	ErrRunNotFound       = errors.New("export run not found")
	ErrInvalidFormat     = errors.New("invalid export format")
	ErrInvalidChunkSize  = errors.New("chunk size must be at least 1")
	ErrInvalidRowCap     = errors.New("row cap must not be negative")
	ErrInvalidQuery      = errors.New("invalid or missing query")
	ErrInvalidOrgID      = errors.New("invalid or missing org_id")
	ErrLedgerOverflow    = errors.New("rows processed would exceed rows total")
	ErrJobIncomplete     = errors.New("export job has not processed all rows")
	ErrJobFailed         = errors.New("export job has failed")
	ErrJobAlreadyFinal   = errors.New("export job is already finalized")
	ErrUnknownSource     = errors.New("unknown row source")
	ErrPlanning          = errors.New("planning error")
	ErrWrite             = errors.New("write error")
	ErrAccessDenied      = errors.New("access denied")
	ErrArtifactMissing   = errors.New("artifact missing")
	ErrInvalidRunStatus  = errors.New("invalid export run status")
	ErrLockNotAcquirable = errors.New("export job is locked by another driver")
)

// ErrorKind classifies terminal export failures
type ErrorKind string

const (
	KindPlanning        ErrorKind = "planning_error"
	KindWrite           ErrorKind = "write_error"
	KindAccessDenied    ErrorKind = "access_denied"
	KindArtifactMissing ErrorKind = "artifact_missing"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPlanning:
		return ErrPlanning
	case KindWrite:
		return ErrWrite
	case KindAccessDenied:
		return ErrAccessDenied
	case KindArtifactMissing:
		return ErrArtifactMissing
	default:
		return nil
	}
}

// UserMessage is the caller-facing explanation for a failure kind
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindPlanning, KindWrite:
		return "export failed, check storage permissions"
	case KindAccessDenied:
		return "export ready but you lack access"
	case KindArtifactMissing:
		return "export produced no file"
	default:
		return "export failed"
	}
}

// ExportError carries the failure kind and the job it belongs to.
// errors.Is matches both the kind sentinel and the wrapped cause.
type ExportError struct {
	Kind  ErrorKind
	JobID string
	Err   error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: job %s", e.Kind, e.JobID)
	}
	return fmt.Sprintf("%s: job %s: %v", e.Kind, e.JobID, e.Err)
}

func (e *ExportError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewPlanningError(jobID string, err error) error {
	return &ExportError{Kind: KindPlanning, JobID: jobID, Err: err}
}

func NewWriteError(jobID string, err error) error {
	return &ExportError{Kind: KindWrite, JobID: jobID, Err: err}
}

// KindOf extracts the ErrorKind from an error chain, if any
func KindOf(err error) (ErrorKind, bool) {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind, true
	}
	return "", false
}
