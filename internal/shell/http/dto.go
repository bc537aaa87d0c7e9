package http

import (
	"time"

	"insights-export/internal/core/domain"
)

// ExportResponse is the API response model for an export.
// It excludes org_id, username, user_id and the server-side output path.
type ExportResponse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Format           string        `json:"format"`
	FileName         string        `json:"file_name"`
	Status           string        `json:"status"`
	RowsProcessed    int           `json:"rows_processed"`
	RowsTotal        int           `json:"rows_total"`
	FractionComplete float64       `json:"fraction_complete"`
	AutoDownload     bool          `json:"auto_download"`
	DownloadURL      string        `json:"download_url,omitempty"`
	Error            *ErrorDetails `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
}

// ErrorDetails describes why an export failed
type ErrorDetails struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OutcomeResponse is the API response model for a finalized export
type OutcomeResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url,omitempty"`
	AutoDownload bool   `json:"auto_download,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ToExportResponse converts a domain.ExportStatus to an ExportResponse DTO
func ToExportResponse(status domain.ExportStatus) ExportResponse {
	job, run := status.Job, status.Run

	resp := ExportResponse{
		ID:               job.ID,
		Name:             job.Name,
		Format:           string(job.Format),
		FileName:         job.FileName,
		Status:           string(run.Status),
		RowsProcessed:    run.Progress.RowsProcessed,
		RowsTotal:        run.Progress.RowsTotal,
		FractionComplete: status.Fraction,
		AutoDownload:     job.AutoDownload,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        run.UpdatedAt,
		EndTime:          run.EndTime,
	}

	if run.ArtifactURI != nil {
		resp.DownloadURL = *run.ArtifactURI
	}
	if run.ErrorKind != nil {
		resp.Error = &ErrorDetails{
			Kind:    string(*run.ErrorKind),
			Message: run.ErrorKind.UserMessage(),
		}
	}
	return resp
}

// ToExportResponseList converts a slice of domain.ExportStatus to ExportResponse DTOs
func ToExportResponseList(statuses []domain.ExportStatus) []ExportResponse {
	responses := make([]ExportResponse, len(statuses))
	for i, status := range statuses {
		responses[i] = ToExportResponse(status)
	}
	return responses
}

// ToOutcomeResponse converts a domain.JobOutcome to an OutcomeResponse DTO.
// Failure causes stay in the logs; callers get the message of the failure kind.
func ToOutcomeResponse(outcome domain.JobOutcome) OutcomeResponse {
	resp := OutcomeResponse{
		ID:     outcome.JobID,
		Status: string(outcome.Status),
	}
	if outcome.IsCompleted() {
		resp.DownloadURL = outcome.ArtifactURI
		resp.AutoDownload = outcome.AutoDownload
		return resp
	}
	resp.Reason = string(outcome.Reason)
	resp.Message = outcome.Reason.UserMessage()
	return resp
}
