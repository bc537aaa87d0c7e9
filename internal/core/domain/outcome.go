package domain

import "errors"

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// AccessDecision is the answer of an access gate for a finished artifact
type AccessDecision string

const (
	AccessAllow AccessDecision = "allow"
	AccessDeny  AccessDecision = "deny"
)

// JobOutcome is the terminal result of an export, produced once by the finalizer.
type JobOutcome struct {
	JobID        string        `json:"job_id"`
	Status       OutcomeStatus `json:"status"`
	ArtifactURI  string        `json:"artifact_uri,omitempty"`
	AutoDownload bool          `json:"auto_download,omitempty"`
	Reason       ErrorKind     `json:"reason,omitempty"`
	Message      string        `json:"message,omitempty"`
}

func Completed(jobID, artifactURI string, autoDownload bool) JobOutcome {
	return JobOutcome{
		JobID:        jobID,
		Status:       OutcomeCompleted,
		ArtifactURI:  artifactURI,
		AutoDownload: autoDownload,
	}
}

func Failed(jobID string, reason ErrorKind, message string) JobOutcome {
	return JobOutcome{
		JobID:   jobID,
		Status:  OutcomeFailed,
		Reason:  reason,
		Message: message,
	}
}

func (o JobOutcome) IsCompleted() bool {
	return o.Status == OutcomeCompleted
}

// Err converts a failed outcome into an *ExportError; completed outcomes return nil.
func (o JobOutcome) Err() error {
	if o.Status != OutcomeFailed {
		return nil
	}
	var cause error
	if o.Message != "" {
		cause = errors.New(o.Message)
	}
	return &ExportError{Kind: o.Reason, JobID: o.JobID, Err: cause}
}
