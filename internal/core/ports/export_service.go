package ports

import (
	"context"
	"io"
	"time"

	"github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/core/domain"
)

// ExportService defines the contract for driving exports.
// All methods accept a context as the first parameter for cancellation,
// timeouts, and request-scoped values.
type ExportService interface {
	// CreateExport plans a new export and persists its job and run
	CreateExport(ctx context.Context, req domain.ExportRequest) (domain.ExportStatus, error)

	// GetExport retrieves an export by job ID (no authorization check)
	GetExport(ctx context.Context, id string) (domain.ExportStatus, error)

	// GetExportWithOrgCheck retrieves an export by job ID with organization authorization check
	GetExportWithOrgCheck(ctx context.Context, id, orgID string) (domain.ExportStatus, error)

	// ListExports retrieves the exports of an organization with optional status filtering
	ListExports(ctx context.Context, orgID, statusFilter string, offset, limit int) ([]domain.ExportStatus, int, error)

	// StepExport processes one chunk of an export
	StepExport(ctx context.Context, id string) (domain.ExportStatus, error)

	// RunExport steps an export until its ledger is complete and finalizes it
	RunExport(ctx context.Context, id string) (domain.JobOutcome, error)

	// FinalizeExport produces the outcome of a fully processed export
	FinalizeExport(ctx context.Context, id string) (domain.JobOutcome, error)

	// OpenArtifact re-checks access and opens the finished artifact
	OpenArtifact(ctx context.Context, id string) (domain.ExportJob, io.ReadCloser, error)

	// DeleteExport removes the job, its run and its artifact
	DeleteExport(ctx context.Context, id string) error

	// ActiveRuns lists runs that still need steps or finalization
	ActiveRuns(ctx context.Context) ([]domain.ExportRun, error)

	// PurgeOlderThan deletes exports created before the cutoff
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// AuthorizedExportService scopes every operation to the caller's identity.
// Used by HTTP handlers where identity is always available from middleware.
type AuthorizedExportService interface {
	CreateExport(ctx context.Context, ident identity.XRHID, req domain.ExportRequest) (domain.ExportStatus, error)
	GetExport(ctx context.Context, ident identity.XRHID, id string) (domain.ExportStatus, error)
	ListExports(ctx context.Context, ident identity.XRHID, statusFilter string, offset, limit int) ([]domain.ExportStatus, int, error)
	StepExport(ctx context.Context, ident identity.XRHID, id string) (domain.ExportStatus, error)
	RunExport(ctx context.Context, ident identity.XRHID, id string) (domain.JobOutcome, error)
	FinalizeExport(ctx context.Context, ident identity.XRHID, id string) (domain.JobOutcome, error)
	OpenArtifact(ctx context.Context, ident identity.XRHID, id string) (domain.ExportJob, io.ReadCloser, error)
	DeleteExport(ctx context.Context, ident identity.XRHID, id string) error
}
