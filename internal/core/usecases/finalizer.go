package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// DownloadURLFunc builds the caller-facing URI of a finished artifact
type DownloadURLFunc func(job domain.ExportJob) string

type Finalizer struct {
	store       ports.ArtifactStore
	downloadURL DownloadURLFunc
}

func NewFinalizer(store ports.ArtifactStore, downloadURL DownloadURLFunc) *Finalizer {
	if downloadURL == nil {
		downloadURL = func(job domain.ExportJob) string { return job.OutputPath }
	}
	return &Finalizer{store: store, downloadURL: downloadURL}
}

// Finalize verifies the artifact, consults the gate and produces the outcome.
// A non-empty export with no rows written fails as KindArtifactMissing; a
// partly written one returns domain.ErrJobIncomplete instead of an outcome.
func (f *Finalizer) Finalize(ctx context.Context, job domain.ExportJob, progress domain.ProgressState, gate ports.AccessGate) (domain.JobOutcome, error) {
	if progress.NothingWritten() {
		log.Printf("[DEBUG] Finalizer - job %s finalized before any rows were written", job.ID)
		return domain.Failed(job.ID, domain.KindArtifactMissing, noRowsWritten(progress)), nil
	}
	if !progress.IsComplete() {
		return domain.JobOutcome{}, fmt.Errorf("finalize job %s at %d/%d rows: %w", job.ID, progress.RowsProcessed, progress.RowsTotal, domain.ErrJobIncomplete)
	}

	size, err := f.store.Size(ctx, job.OutputPath)
	if err != nil || size == 0 {
		msg := "artifact is empty"
		if err != nil {
			msg = err.Error()
		}
		log.Printf("[DEBUG] Finalizer - job %s has no artifact: %s", job.ID, msg)
		return domain.Failed(job.ID, domain.KindArtifactMissing, msg), nil
	}

	decision, err := gate.Check(ctx, job.OutputPath)
	if err != nil {
		log.Printf("[DEBUG] Finalizer - access check failed for job %s: %v", job.ID, err)
		return domain.Failed(job.ID, domain.KindAccessDenied, err.Error()), nil
	}
	if decision != domain.AccessAllow {
		log.Printf("[DEBUG] Finalizer - access denied for job %s, artifact retained", job.ID)
		return domain.Failed(job.ID, domain.KindAccessDenied, domain.KindAccessDenied.UserMessage()), nil
	}

	uri := f.downloadURL(job)
	log.Printf("[DEBUG] Finalizer - job %s completed: %s", job.ID, uri)
	return domain.Completed(job.ID, uri, job.AutoDownload), nil
}

func noRowsWritten(progress domain.ProgressState) string {
	return fmt.Sprintf("no rows were written, 0 of %d", progress.RowsTotal)
}

func isArtifactMissing(err error) bool {
	return errors.Is(err, domain.ErrArtifactMissing)
}
