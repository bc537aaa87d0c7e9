package export

import (
	"time"
)

// Format is the artifact format of an export
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
)

// Status is the lifecycle state of an export run
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Query names the result set to export
type Query struct {
	Name      string            `json:"name"`
	Source    string            `json:"source"`
	Statement string            `json:"statement,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Columns   []string          `json:"columns,omitempty"`
}

// ExportRequest is the body of a create call
type ExportRequest struct {
	Name         string `json:"name,omitempty"`
	Query        Query  `json:"query"`
	Format       Format `json:"format"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	RowCap       int    `json:"row_cap,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	AutoDownload bool   `json:"auto_download,omitempty"`
}

// ExportResponse is the progress view of an export
type ExportResponse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Format           Format        `json:"format"`
	FileName         string        `json:"file_name"`
	Status           Status        `json:"status"`
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

// OutcomeResponse is returned by run and finalize calls
type OutcomeResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url,omitempty"`
	AutoDownload bool   `json:"auto_download,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ExportListResponse is one page of exports
type ExportListResponse struct {
	Meta  Metadata         `json:"meta"`
	Links Links            `json:"links"`
	Data  []ExportResponse `json:"data"`
}

// Metadata carries the total number of matching exports
type Metadata struct {
	Count int `json:"count"`
}

// Links are the pagination links of a list page
type Links struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
}

// ErrorResponse is the JSON:API error body returned by the service
type ErrorResponse struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject is a single API error
type ErrorObject struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ListParams represents query parameters for listing exports
type ListParams struct {
	Status *Status `json:"status,omitempty"`
	Limit  *int    `json:"limit,omitempty"`
	Offset *int    `json:"offset,omitempty"`
}
