package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"insights-export/internal/core/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const jobColumns = `id, name, org_id, username, user_id, query, format, chunk_size, row_cap, rows_total, output_path, file_name, auto_download, created_at`

const runColumns = `job_id, status, rows_processed, rows_total, is_first_step, start_time, updated_at, end_time, error_kind, error_message, artifact_uri`

func encodeQuery(q domain.QuerySpec) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("failed to marshal query: %w", err)
	}
	return string(data), nil
}

func scanJob(row rowScanner) (domain.ExportJob, error) {
	var job domain.ExportJob
	var queryJSON, format, createdAt string

	err := row.Scan(&job.ID, &job.Name, &job.OrgID, &job.Username, &job.UserID, &queryJSON, &format,
		&job.ChunkSize, &job.RowCap, &job.RowsTotal, &job.OutputPath, &job.FileName, &job.AutoDownload, &createdAt)
	if err != nil {
		return domain.ExportJob{}, err
	}

	if err := json.Unmarshal([]byte(queryJSON), &job.Query); err != nil {
		return domain.ExportJob{}, fmt.Errorf("failed to unmarshal query of job %s: %w", job.ID, err)
	}
	job.Format = domain.Format(format)
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.ExportJob{}, fmt.Errorf("failed to parse created_at of job %s: %w", job.ID, err)
	}
	return job, nil
}

func scanRun(row rowScanner) (domain.ExportRun, error) {
	var run domain.ExportRun
	var status, startTime, updatedAt string
	var endTime, errorKind, errorMessage, artifactURI sql.NullString

	err := row.Scan(&run.JobID, &status, &run.Progress.RowsProcessed, &run.Progress.RowsTotal, &run.Progress.IsFirstStep,
		&startTime, &updatedAt, &endTime, &errorKind, &errorMessage, &artifactURI)
	if err != nil {
		return domain.ExportRun{}, err
	}

	run.Status = domain.RunStatus(status)
	if run.StartTime, err = time.Parse(time.RFC3339Nano, startTime); err != nil {
		return domain.ExportRun{}, fmt.Errorf("failed to parse start_time of run %s: %w", run.JobID, err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return domain.ExportRun{}, fmt.Errorf("failed to parse updated_at of run %s: %w", run.JobID, err)
	}
	if endTime.Valid {
		if t, err := time.Parse(time.RFC3339Nano, endTime.String); err == nil {
			run.EndTime = &t
		}
	}
	if errorKind.Valid {
		kind := domain.ErrorKind(errorKind.String)
		run.ErrorKind = &kind
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if artifactURI.Valid {
		run.ArtifactURI = &artifactURI.String
	}
	return run, nil
}

// runArgs flattens a run into column order for inserts
func runArgs(run domain.ExportRun) []interface{} {
	var endTime, errorKind interface{}
	if run.EndTime != nil {
		endTime = run.EndTime.UTC().Format(time.RFC3339Nano)
	}
	if run.ErrorKind != nil {
		errorKind = string(*run.ErrorKind)
	}
	return []interface{}{
		run.JobID, string(run.Status), run.Progress.RowsProcessed, run.Progress.RowsTotal, run.Progress.IsFirstStep,
		run.StartTime.UTC().Format(time.RFC3339Nano), run.UpdatedAt.UTC().Format(time.RFC3339Nano),
		endTime, errorKind, nullableString(run.ErrorMessage), nullableString(run.ArtifactURI),
	}
}

func jobArgs(job domain.ExportJob) ([]interface{}, error) {
	queryJSON, err := encodeQuery(job.Query)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		job.ID, job.Name, job.OrgID, job.Username, job.UserID, queryJSON, string(job.Format),
		job.ChunkSize, job.RowCap, job.RowsTotal, job.OutputPath, job.FileName, job.AutoDownload,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func statusArgs(statuses []domain.RunStatus) []interface{} {
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}
