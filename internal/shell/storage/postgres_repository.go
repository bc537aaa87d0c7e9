package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"insights-export/internal/config"
	"insights-export/internal/core/domain"
	"insights-export/internal/core/usecases"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// OpenPostgres connects to the configured database and applies pending migrations
func OpenPostgres(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", buildConnectionString(cfg))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[DEBUG] Postgres - database initialized successfully")
	return db, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("[DEBUG] Postgres - schema at version %d (dirty=%v)", version, dirty)
	return nil
}

type PostgresJobRepository struct {
	db *sql.DB
}

func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

var _ usecases.JobRepository = (*PostgresJobRepository)(nil)

func (r *PostgresJobRepository) Save(ctx context.Context, job domain.ExportJob) error {
	args, err := jobArgs(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO export_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, org_id = EXCLUDED.org_id, username = EXCLUDED.username, user_id = EXCLUDED.user_id,
			query = EXCLUDED.query, format = EXCLUDED.format, chunk_size = EXCLUDED.chunk_size, row_cap = EXCLUDED.row_cap,
			rows_total = EXCLUDED.rows_total, output_path = EXCLUDED.output_path, file_name = EXCLUDED.file_name,
			auto_download = EXCLUDED.auto_download`

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *PostgresJobRepository) FindByID(ctx context.Context, id string) (domain.ExportJob, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return domain.ExportJob{}, domain.ErrJobNotFound
	}
	return job, err
}

func (r *PostgresJobRepository) FindAll(ctx context.Context) ([]domain.ExportJob, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC`)
}

func (r *PostgresJobRepository) FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
}

func (r *PostgresJobRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]domain.ExportJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.ExportJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM export_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *PostgresJobRepository) Close() error {
	return r.db.Close()
}

type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

var _ usecases.RunRepository = (*PostgresRunRepository)(nil)

func (r *PostgresRunRepository) Save(ctx context.Context, run domain.ExportRun) error {
	query := `
		INSERT INTO export_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status, rows_processed = EXCLUDED.rows_processed, rows_total = EXCLUDED.rows_total,
			is_first_step = EXCLUDED.is_first_step, updated_at = EXCLUDED.updated_at, end_time = EXCLUDED.end_time,
			error_kind = EXCLUDED.error_kind, error_message = EXCLUDED.error_message, artifact_uri = EXCLUDED.artifact_uri`

	if _, err := r.db.ExecContext(ctx, query, runArgs(run)...); err != nil {
		return fmt.Errorf("failed to save export run: %w", err)
	}
	return nil
}

func (r *PostgresRunRepository) FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM export_runs WHERE job_id = $1`, jobID))
	if err == sql.ErrNoRows {
		return domain.ExportRun{}, domain.ErrRunNotFound
	}
	return run, err
}

func (r *PostgresRunRepository) FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM export_runs WHERE status = ANY($1) ORDER BY start_time ASC`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ExportRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRunRepository) Delete(ctx context.Context, jobID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM export_runs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete export run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func buildConnectionString(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
}
