package domain

import (
	"time"
)

type RunStatus string

const (
	RunStatusPlanned   RunStatus = "planned"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExportRun is the persisted lifecycle record of an export job: its ledger
// and, once terminal, its outcome.
type ExportRun struct {
	JobID        string        `json:"job_id"`
	Status       RunStatus     `json:"status"`
	Progress     ProgressState `json:"progress"`
	StartTime    time.Time     `json:"start_time"`
	UpdatedAt    time.Time     `json:"updated_at"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	ErrorKind    *ErrorKind    `json:"error_kind,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	ArtifactURI  *string       `json:"artifact_uri,omitempty"`
}

func NewExportRun(jobID string, progress ProgressState) ExportRun {
	now := time.Now().UTC()
	return ExportRun{
		JobID:     jobID,
		Status:    RunStatusPlanned,
		Progress:  progress,
		StartTime: now,
		UpdatedAt: now,
	}
}

func (r ExportRun) WithProgress(progress ProgressState) ExportRun {
	updated := r
	updated.Status = RunStatusRunning
	updated.Progress = progress
	updated.UpdatedAt = time.Now().UTC()
	return updated
}

func (r ExportRun) WithCompleted(artifactURI string) ExportRun {
	now := time.Now().UTC()
	updated := r
	updated.Status = RunStatusCompleted
	updated.UpdatedAt = now
	updated.EndTime = &now
	updated.ErrorKind = nil
	updated.ErrorMessage = nil
	updated.ArtifactURI = &artifactURI
	return updated
}

func (r ExportRun) WithFailed(kind ErrorKind, errorMessage string) ExportRun {
	now := time.Now().UTC()
	updated := r
	updated.Status = RunStatusFailed
	updated.UpdatedAt = now
	updated.EndTime = &now
	updated.ErrorKind = &kind
	updated.ErrorMessage = &errorMessage
	updated.ArtifactURI = nil
	return updated
}

// IsTerminal reports whether the run has an outcome
func (r ExportRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// FailedWith reports whether the run failed with the given kind
func (r ExportRun) FailedWith(kind ErrorKind) bool {
	return r.Status == RunStatusFailed && r.ErrorKind != nil && *r.ErrorKind == kind
}

// Outcome rebuilds the terminal outcome of a finished run
func (r ExportRun) Outcome(autoDownload bool) (JobOutcome, bool) {
	switch r.Status {
	case RunStatusCompleted:
		uri := ""
		if r.ArtifactURI != nil {
			uri = *r.ArtifactURI
		}
		return Completed(r.JobID, uri, autoDownload), true
	case RunStatusFailed:
		kind := KindWrite
		if r.ErrorKind != nil {
			kind = *r.ErrorKind
		}
		msg := ""
		if r.ErrorMessage != nil {
			msg = *r.ErrorMessage
		}
		return Failed(r.JobID, kind, msg), true
	default:
		return JobOutcome{}, false
	}
}

func IsValidRunStatus(s string) bool {
	switch RunStatus(s) {
	case RunStatusPlanned, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}
