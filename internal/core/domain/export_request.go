package domain

import "strings"

// ExportRequest carries everything the planner needs to start an export
type ExportRequest struct {
	Name         string    `json:"name" yaml:"name"`
	Query        QuerySpec `json:"query" yaml:"query"`
	Format       Format    `json:"format" yaml:"format"`
	ChunkSize    int       `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	RowCap       int       `json:"row_cap,omitempty" yaml:"row_cap,omitempty"`
	FileName     string    `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	AutoDownload bool      `json:"auto_download,omitempty" yaml:"auto_download,omitempty"`
	OrgID        string    `json:"-" yaml:"org_id,omitempty"`
	Username     string    `json:"-" yaml:"username,omitempty"`
	UserID       string    `json:"-" yaml:"user_id,omitempty"`
}

// Validate checks the request fields that do not depend on configuration
func (r ExportRequest) Validate() error {
	// the org ID is used unchanged as the artifact directory
	if !IsSafeSegment(r.OrgID) {
		return ErrInvalidOrgID
	}
	if !IsValidFormat(string(r.Format)) {
		return ErrInvalidFormat
	}
	if r.ChunkSize < 0 {
		return ErrInvalidChunkSize
	}
	if r.RowCap < 0 {
		return ErrInvalidRowCap
	}
	if strings.TrimSpace(r.Query.Name) == "" || !IsValidSourceKind(string(r.Query.Source)) {
		return ErrInvalidQuery
	}
	return nil
}

// ExportStatus is a read view of a job and its run
type ExportStatus struct {
	Job      ExportJob `json:"job"`
	Run      ExportRun `json:"run"`
	Fraction float64   `json:"fraction_complete"`
}

func NewExportStatus(job ExportJob, run ExportRun) ExportStatus {
	return ExportStatus{
		Job:      job,
		Run:      run,
		Fraction: run.Progress.FractionComplete(),
	}
}
