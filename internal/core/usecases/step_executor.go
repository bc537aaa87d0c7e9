package usecases

import (
	"context"
	"fmt"
	"log"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/core/splice"
)

// StepExecutor processes exactly one chunk of an export per call.
type StepExecutor struct {
	store ports.ArtifactStore
}

func NewStepExecutor(store ports.ArtifactStore) *StepExecutor {
	return &StepExecutor{store: store}
}

// Step fetches, renders, splices and persists the next chunk, and only then
// advances the ledger. It reports false when there was nothing left to do.
// On error the returned ledger is the one passed in.
func (e *StepExecutor) Step(ctx context.Context, job domain.ExportJob, progress domain.ProgressState, source ports.RowSource, renderer ports.Renderer) (domain.ProgressState, bool, error) {
	if err := progress.Validate(); err != nil {
		return progress, false, fmt.Errorf("step job %s: %w", job.ID, err)
	}

	items := progress.NextChunk(job.ChunkSize)
	if items <= 0 {
		log.Printf("[DEBUG] StepExecutor - job %s has no rows left", job.ID)
		return progress, false, nil
	}

	pos := splice.Position{
		First:  progress.IsFirstStep,
		Final:  progress.IsFinalStep(items),
		Offset: progress.RowsProcessed,
	}
	log.Printf("[DEBUG] StepExecutor - job %s: offset=%d limit=%d first=%v final=%v", job.ID, progress.RowsProcessed, items, pos.First, pos.Final)

	splicer, err := splice.ForFormat(job.Format)
	if err != nil {
		return progress, false, domain.NewWriteError(job.ID, err)
	}

	rows, err := source.Fetch(ctx, progress.RowsProcessed, items)
	if err != nil {
		return progress, false, domain.NewWriteError(job.ID, fmt.Errorf("fetch rows: %w", err))
	}
	switch {
	case len(rows) > items:
		log.Printf("[DEBUG] StepExecutor - job %s: source returned %d rows for limit %d, truncating", job.ID, len(rows), items)
		rows = rows[:items]
	case len(rows) < items:
		log.Printf("[DEBUG] StepExecutor - job %s: source returned %d of %d rows, result set changed since planning", job.ID, len(rows), items)
	}

	pos.Rows = len(rows)
	if !pos.First {
		size, err := e.store.Size(ctx, job.OutputPath)
		if err != nil {
			return progress, false, domain.NewWriteError(job.ID, fmt.Errorf("stat artifact: %w", err))
		}
		pos.Size = size
	}

	fragment, err := renderer.Render(ctx, rows, job.Format)
	if err != nil {
		return progress, false, domain.NewWriteError(job.ID, fmt.Errorf("render rows: %w", err))
	}

	w, err := splicer.Splice(fragment, pos, func() ([]byte, error) {
		return e.store.Read(ctx, job.OutputPath)
	})
	if err != nil {
		return progress, false, domain.NewWriteError(job.ID, err)
	}

	if err := persist(ctx, e.store, job.OutputPath, w); err != nil {
		return progress, false, domain.NewWriteError(job.ID, err)
	}

	next, err := progress.Advance(items)
	if err != nil {
		return progress, false, fmt.Errorf("step job %s: %w", job.ID, err)
	}

	log.Printf("[DEBUG] StepExecutor - job %s: %d/%d rows (%.2f)", job.ID, next.RowsProcessed, next.RowsTotal, next.FractionComplete())
	return next, true, nil
}

func persist(ctx context.Context, store ports.ArtifactStore, path string, w splice.Write) error {
	switch w.Mode {
	case domain.PersistAppend:
		if err := store.Append(ctx, path, w.Data); err != nil {
			return fmt.Errorf("append artifact: %w", err)
		}
	case domain.PersistRewrite:
		if err := store.Rewrite(ctx, path, w.Data); err != nil {
			return fmt.Errorf("rewrite artifact: %w", err)
		}
	default:
		return fmt.Errorf("unknown persist mode %q", w.Mode)
	}
	return nil
}
