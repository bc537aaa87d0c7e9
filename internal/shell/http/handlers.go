package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/identity"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

const exportsPath = "/api/export/v1/exports/"

type ExportHandler struct {
	exportService ports.AuthorizedExportService
}

func NewExportHandler(exportService ports.AuthorizedExportService) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
	}
}

func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	log.Printf("[DEBUG] HTTP CreateExport called - method: %s, path: %s", r.Method, r.URL.Path)

	var req domain.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[DEBUG] HTTP CreateExport failed - JSON decode error: %v", err)
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidJSON(err)})
		return
	}

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] CreateExport failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	if req.Format == "" {
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("format", "required")})
		return
	}
	if req.Query.Name == "" {
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("query.name", "required")})
		return
	}

	log.Printf("[DEBUG] HTTP CreateExport - parsed request: name=%s, query=%s, source=%s, format=%s, org_id=%s, user_id=%s",
		req.Name, req.Query.Name, req.Query.Source, req.Format, ident.Identity.OrgID, ident.Identity.User.UserID)

	status, err := h.exportService.CreateExport(r.Context(), ident, req)
	if err != nil {
		log.Printf("[DEBUG] HTTP CreateExport failed - error: %v", err)
		respondWithServiceError(w, "", err)
		return
	}

	log.Printf("[DEBUG] HTTP CreateExport success - export created with ID: %s, rows: %d", status.Job.ID, status.Run.Progress.RowsTotal)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", exportsPath+status.Job.ID)
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(ToExportResponse(status)); err != nil {
		log.Printf("[DEBUG] HTTP CreateExport - warning: failed to encode response: %v", err)
	}
}

func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] ListExports failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !domain.IsValidRunStatus(statusFilter) {
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidField("status", "unknown export status")})
		return
	}
	offset, limit := parsePaginationParams(r.URL)

	statuses, total, err := h.exportService.ListExports(r.Context(), ident, statusFilter, offset, limit)
	if err != nil {
		log.Printf("[DEBUG] ListExports failed - error: %v", err)
		respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{errorInternalServer()})
		return
	}

	response := buildPaginatedResponse(r.URL, offset, limit, total, ToExportResponseList(statuses))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] GetExport failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	status, err := h.exportService.GetExport(r.Context(), ident, id)
	if err != nil {
		respondWithServiceError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToExportResponse(status))
}

// StepExport processes one chunk and returns the updated progress
func (h *ExportHandler) StepExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] StepExport failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	status, err := h.exportService.StepExport(r.Context(), ident, id)
	if err != nil {
		log.Printf("[DEBUG] HTTP StepExport failed - export %s: %v", id, err)
		respondWithServiceError(w, id, err)
		return
	}

	log.Printf("[DEBUG] HTTP StepExport - export %s at %d/%d rows", id, status.Run.Progress.RowsProcessed, status.Run.Progress.RowsTotal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToExportResponse(status))
}

// RunExport drives the export to completion within the request
func (h *ExportHandler) RunExport(w http.ResponseWriter, r *http.Request) {
	h.writeOutcome(w, r, "RunExport", h.exportService.RunExport)
}

func (h *ExportHandler) FinalizeExport(w http.ResponseWriter, r *http.Request) {
	h.writeOutcome(w, r, "FinalizeExport", h.exportService.FinalizeExport)
}

type outcomeFunc func(ctx context.Context, ident identity.XRHID, id string) (domain.JobOutcome, error)

func (h *ExportHandler) writeOutcome(w http.ResponseWriter, r *http.Request, op string, fn outcomeFunc) {
	id := mux.Vars(r)["id"]

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] %s failed - invalid identity", op)
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	outcome, err := fn(r.Context(), ident, id)
	if err != nil {
		log.Printf("[DEBUG] HTTP %s failed - export %s: %v", op, id, err)
		respondWithServiceError(w, id, err)
		return
	}

	log.Printf("[DEBUG] HTTP %s - export %s finished with status %s", op, id, outcome.Status)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToOutcomeResponse(outcome))
}

// DownloadExport streams the finished artifact after re-checking access
func (h *ExportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] DownloadExport failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	job, artifact, err := h.exportService.OpenArtifact(r.Context(), ident, id)
	if err != nil {
		log.Printf("[DEBUG] HTTP DownloadExport failed - export %s: %v", id, err)
		respondWithServiceError(w, id, err)
		return
	}
	defer artifact.Close()

	w.Header().Set("Content-Type", job.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, artifact)
	if err != nil {
		log.Printf("[DEBUG] HTTP DownloadExport - export %s interrupted after %d bytes: %v", id, written, err)
		return
	}
	log.Printf("[DEBUG] HTTP DownloadExport - export %s sent %d bytes", id, written)
}

func (h *ExportHandler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ident := identity.Get(r.Context())
	if !isValidIdentity(ident) {
		log.Printf("[DEBUG] DeleteExport failed - invalid identity")
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorInvalidIdentity()})
		return
	}

	if err := h.exportService.DeleteExport(r.Context(), ident, id); err != nil {
		respondWithServiceError(w, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func isValidIdentity(ident identity.XRHID) bool {
	if ident.Identity.OrgID == "" {
		return false
	}
	if ident.Identity.User == nil || ident.Identity.User.Username == "" || ident.Identity.User.UserID == "" {
		return false
	}

	return true
}
