package usecases

import (
	"context"
	"io"

	"github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// AuthorizedExportServiceAdapter adapts an ExportService to the AuthorizedExportService interface.
// It extracts user/org information from the identity and checks ownership before delegating.
type AuthorizedExportServiceAdapter struct {
	core ports.ExportService
}

func NewAuthorizedExportService(core ports.ExportService) *AuthorizedExportServiceAdapter {
	return &AuthorizedExportServiceAdapter{core: core}
}

// Ensure it implements the interface
var _ ports.AuthorizedExportService = (*AuthorizedExportServiceAdapter)(nil)

func (a *AuthorizedExportServiceAdapter) CreateExport(ctx context.Context, ident identity.XRHID, req domain.ExportRequest) (domain.ExportStatus, error) {
	req.OrgID = ident.Identity.OrgID
	if ident.Identity.User != nil {
		req.Username = ident.Identity.User.Username
		req.UserID = ident.Identity.User.UserID
	}
	return a.core.CreateExport(ctx, req)
}

func (a *AuthorizedExportServiceAdapter) GetExport(ctx context.Context, ident identity.XRHID, id string) (domain.ExportStatus, error) {
	return a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID)
}

func (a *AuthorizedExportServiceAdapter) ListExports(ctx context.Context, ident identity.XRHID, statusFilter string, offset, limit int) ([]domain.ExportStatus, int, error) {
	return a.core.ListExports(ctx, ident.Identity.OrgID, statusFilter, offset, limit)
}

func (a *AuthorizedExportServiceAdapter) StepExport(ctx context.Context, ident identity.XRHID, id string) (domain.ExportStatus, error) {
	if _, err := a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID); err != nil {
		return domain.ExportStatus{}, err
	}
	return a.core.StepExport(ctx, id)
}

func (a *AuthorizedExportServiceAdapter) RunExport(ctx context.Context, ident identity.XRHID, id string) (domain.JobOutcome, error) {
	if _, err := a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID); err != nil {
		return domain.JobOutcome{}, err
	}
	return a.core.RunExport(ctx, id)
}

func (a *AuthorizedExportServiceAdapter) FinalizeExport(ctx context.Context, ident identity.XRHID, id string) (domain.JobOutcome, error) {
	if _, err := a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID); err != nil {
		return domain.JobOutcome{}, err
	}
	return a.core.FinalizeExport(ctx, id)
}

func (a *AuthorizedExportServiceAdapter) OpenArtifact(ctx context.Context, ident identity.XRHID, id string) (domain.ExportJob, io.ReadCloser, error) {
	if _, err := a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID); err != nil {
		return domain.ExportJob{}, nil, err
	}
	return a.core.OpenArtifact(ctx, id)
}

func (a *AuthorizedExportServiceAdapter) DeleteExport(ctx context.Context, ident identity.XRHID, id string) error {
	if _, err := a.core.GetExportWithOrgCheck(ctx, id, ident.Identity.OrgID); err != nil {
		return err
	}
	return a.core.DeleteExport(ctx, id)
}
