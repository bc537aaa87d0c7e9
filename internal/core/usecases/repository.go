package usecases

import (
	"context"

	"insights-export/internal/core/domain"
)

type JobRepository interface {
	Save(ctx context.Context, job domain.ExportJob) error
	FindByID(ctx context.Context, id string) (domain.ExportJob, error)
	FindAll(ctx context.Context) ([]domain.ExportJob, error)
	FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository stores one ExportRun per job, keyed by job ID
type RunRepository interface {
	Save(ctx context.Context, run domain.ExportRun) error
	FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error)
	FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error)
	Delete(ctx context.Context, jobID string) error
}
