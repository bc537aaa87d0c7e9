package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/usecases"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS export_jobs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    org_id TEXT NOT NULL,
    username TEXT NOT NULL,
    user_id TEXT NOT NULL,
    query TEXT NOT NULL, -- JSON string
    format TEXT NOT NULL,
    chunk_size INTEGER NOT NULL,
    row_cap INTEGER NOT NULL DEFAULT 0,
    rows_total INTEGER NOT NULL,
    output_path TEXT NOT NULL,
    file_name TEXT NOT NULL,
    auto_download BOOLEAN NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_jobs_org_id ON export_jobs(org_id);
CREATE INDEX IF NOT EXISTS idx_export_jobs_created_at ON export_jobs(created_at);

CREATE TABLE IF NOT EXISTS export_runs (
    job_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    rows_processed INTEGER NOT NULL,
    rows_total INTEGER NOT NULL,
    is_first_step BOOLEAN NOT NULL,
    start_time TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    end_time TEXT,
    error_kind TEXT,
    error_message TEXT,
    artifact_uri TEXT,
    FOREIGN KEY (job_id) REFERENCES export_jobs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_export_runs_status ON export_runs(status);
`

// OpenSQLite opens the database file and creates the export tables
func OpenSQLite(dbPath string) (*sql.DB, error) {
	log.Printf("[DEBUG] SQLite - opening database: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		log.Printf("[DEBUG] SQLite - schema initialization failed: %v", err)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[DEBUG] SQLite - database initialized successfully")
	return db, nil
}

type SQLiteJobRepository struct {
	db *sql.DB
}

func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

var _ usecases.JobRepository = (*SQLiteJobRepository)(nil)

func (r *SQLiteJobRepository) Save(ctx context.Context, job domain.ExportJob) error {
	log.Printf("[DEBUG] SQLiteJobRepository.Save - saving job: %s", job.ID)

	args, err := jobArgs(job)
	if err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO export_jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Printf("[DEBUG] SQLiteJobRepository.Save - database error: %v", err)
		return err
	}
	return nil
}

func (r *SQLiteJobRepository) FindByID(ctx context.Context, id string) (domain.ExportJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		log.Printf("[DEBUG] SQLiteJobRepository.FindByID - job not found: %s", id)
		return domain.ExportJob{}, domain.ErrJobNotFound
	}
	if err != nil {
		log.Printf("[DEBUG] SQLiteJobRepository.FindByID - database error: %v", err)
		return domain.ExportJob{}, err
	}
	return job, nil
}

func (r *SQLiteJobRepository) FindAll(ctx context.Context) ([]domain.ExportJob, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC`)
}

func (r *SQLiteJobRepository) FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE org_id = ? ORDER BY created_at DESC`, orgID)
}

func (r *SQLiteJobRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]domain.ExportJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("[DEBUG] SQLiteJobRepository - query error: %v", err)
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.ExportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Printf("[DEBUG] SQLiteJobRepository - scan error: %v", err)
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) Delete(ctx context.Context, id string) error {
	log.Printf("[DEBUG] SQLiteJobRepository.Delete - deleting job: %s", id)

	result, err := r.db.ExecContext(ctx, `DELETE FROM export_jobs WHERE id = ?`, id)
	if err != nil {
		log.Printf("[DEBUG] SQLiteJobRepository.Delete - database error: %v", err)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *SQLiteJobRepository) Close() error {
	log.Printf("[DEBUG] SQLiteJobRepository.Close - closing database connection")
	return r.db.Close()
}

type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

var _ usecases.RunRepository = (*SQLiteRunRepository)(nil)

func (r *SQLiteRunRepository) Save(ctx context.Context, run domain.ExportRun) error {
	query := `INSERT OR REPLACE INTO export_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, runArgs(run)...); err != nil {
		log.Printf("[DEBUG] SQLiteRunRepository.Save - database error: %v", err)
		return fmt.Errorf("failed to save export run: %w", err)
	}

	log.Printf("[DEBUG] SQLiteRunRepository - saved run: job_id=%s, status=%s, rows=%d/%d", run.JobID, run.Status, run.Progress.RowsProcessed, run.Progress.RowsTotal)
	return nil
}

func (r *SQLiteRunRepository) FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM export_runs WHERE job_id = ?`, jobID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return domain.ExportRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.ExportRun{}, fmt.Errorf("failed to query export run: %w", err)
	}
	return run, nil
}

func (r *SQLiteRunRepository) FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error) {
	if len(statuses) == 0 {
		return []domain.ExportRun{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := `SELECT ` + runColumns + ` FROM export_runs WHERE status IN (` + placeholders + `) ORDER BY start_time ASC`

	rows, err := r.db.QueryContext(ctx, query, statusArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ExportRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRunRepository) Delete(ctx context.Context, jobID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM export_runs WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete export run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}
