package usecases

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/core/splice"
)

type PlannerConfig struct {
	BaseDir          string
	DefaultChunkSize int
	// DefaultRowCap applies when a request sets no cap; 0 means unlimited
	DefaultRowCap int
	// XLSXRowCap bounds spreadsheet exports; 0 disables the bound
	XLSXRowCap int
}

// Planner turns an export request into a job and its initial ledger.
type Planner struct {
	store ports.ArtifactStore
	cfg   PlannerConfig
	now   func() time.Time
}

func NewPlanner(store ports.ArtifactStore, cfg PlannerConfig) *Planner {
	return &Planner{
		store: store,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Plan counts the result set once, fixes the job parameters and initialises
// the artifact. An empty result set is written out immediately and returns a
// ledger that is already complete.
func (p *Planner) Plan(ctx context.Context, req domain.ExportRequest, source ports.RowSource, renderer ports.Renderer) (domain.ExportJob, domain.ProgressState, error) {
	log.Printf("[DEBUG] Planner - plan called - query: %s, format: %s, org_id: %s", req.Query.Name, req.Format, req.OrgID)

	if err := req.Validate(); err != nil {
		log.Printf("[DEBUG] Planner - invalid request: %v", err)
		return domain.ExportJob{}, domain.ProgressState{}, err
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = p.cfg.DefaultChunkSize
	}
	if chunkSize < 1 {
		return domain.ExportJob{}, domain.ProgressState{}, domain.ErrInvalidChunkSize
	}

	startedAt := p.now()
	jobID := domain.NewExportJobID(req.Query, req.UserID, startedAt)

	count, err := source.Count(ctx)
	if err != nil {
		log.Printf("[DEBUG] Planner - count failed for job %s: %v", jobID, err)
		return domain.ExportJob{}, domain.ProgressState{}, domain.NewPlanningError(jobID, fmt.Errorf("count rows: %w", err))
	}
	if count < 0 {
		return domain.ExportJob{}, domain.ProgressState{}, domain.NewPlanningError(jobID, fmt.Errorf("row source returned negative count %d", count))
	}

	rowCap := p.effectiveRowCap(req.RowCap, req.Format)
	total := count
	if rowCap > 0 && total > rowCap {
		log.Printf("[DEBUG] Planner - capping job %s at %d of %d rows", jobID, rowCap, count)
		total = rowCap
	}

	name := req.Name
	if name == "" {
		name = req.Query.Name
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("%s_%s", req.Query.Name, startedAt.Format("20060102_150405"))
	}
	fileName = domain.SafeSegment(strings.TrimSuffix(fileName, req.Format.Extension()))

	job := domain.ExportJob{
		ID:           jobID,
		Name:         name,
		OrgID:        req.OrgID,
		Username:     req.Username,
		UserID:       req.UserID,
		Query:        req.Query,
		Format:       req.Format,
		ChunkSize:    chunkSize,
		RowCap:       rowCap,
		RowsTotal:    total,
		FileName:     fileName + req.Format.Extension(),
		AutoDownload: req.AutoDownload,
		CreatedAt:    startedAt,
	}
	job.OutputPath = filepath.Join(p.cfg.BaseDir, domain.SafeSegment(req.OrgID), domain.SafeSegment(req.UserID), jobID, job.FileName)

	if err := p.store.Prepare(ctx, job.OutputPath); err != nil {
		log.Printf("[DEBUG] Planner - prepare failed for job %s: %v", jobID, err)
		return domain.ExportJob{}, domain.ProgressState{}, domain.NewPlanningError(jobID, fmt.Errorf("prepare artifact: %w", err))
	}

	progress := domain.NewProgressState(total)
	if total == 0 {
		if err := p.writeEmpty(ctx, job, renderer); err != nil {
			log.Printf("[DEBUG] Planner - writing empty artifact failed for job %s: %v", jobID, err)
			return domain.ExportJob{}, domain.ProgressState{}, domain.NewPlanningError(jobID, err)
		}
		progress, _ = progress.Advance(0)
		log.Printf("[DEBUG] Planner - job %s has no rows, empty artifact written", jobID)
	}

	log.Printf("[DEBUG] Planner - planned job %s: rows_total=%d chunk_size=%d path=%s", jobID, total, chunkSize, job.OutputPath)
	return job, progress, nil
}

func (p *Planner) effectiveRowCap(requested int, format domain.Format) int {
	if requested == 0 {
		requested = p.cfg.DefaultRowCap
	}
	if format != domain.FormatXLSX || p.cfg.XLSXRowCap <= 0 {
		return requested
	}
	if requested == 0 || requested > p.cfg.XLSXRowCap {
		return p.cfg.XLSXRowCap
	}
	return requested
}

// writeEmpty renders an empty batch as a single first-and-final fragment,
// falling back to the splicer's minimal document.
func (p *Planner) writeEmpty(ctx context.Context, job domain.ExportJob, renderer ports.Renderer) error {
	s, err := splice.ForFormat(job.Format)
	if err != nil {
		return err
	}

	var data []byte
	if fragment, err := renderer.Render(ctx, nil, job.Format); err == nil {
		w, err := s.Splice(fragment, splice.Position{First: true, Final: true}, func() ([]byte, error) { return nil, nil })
		if err == nil {
			data = w.Data
		}
	} else {
		log.Printf("[DEBUG] Planner - rendering empty batch failed for job %s, using minimal document: %v", job.ID, err)
	}

	if len(data) == 0 {
		if data, err = s.Empty(); err != nil {
			return fmt.Errorf("empty artifact: %w", err)
		}
	}

	if err := p.store.Rewrite(ctx, job.OutputPath, data); err != nil {
		return fmt.Errorf("write empty artifact: %w", err)
	}
	return nil
}
