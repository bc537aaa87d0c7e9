package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// DefaultExportService drives exports through plan, step and finalize and
// persists the job and run records between calls. Steps of one job are
// serialized by an in-process mutex; drivers running on several replicas add a
// distributed lock on top.
type DefaultExportService struct {
	jobs      JobRepository
	runs      RunRepository
	resolver  ports.SourceResolver
	store     ports.ArtifactStore
	planner   *Planner
	executor  *StepExecutor
	finalizer *Finalizer
	gate      ports.AccessGate
	notifier  ports.CompletionNotifier

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
}

func NewExportService(
	jobs JobRepository,
	runs RunRepository,
	resolver ports.SourceResolver,
	store ports.ArtifactStore,
	planner *Planner,
	executor *StepExecutor,
	finalizer *Finalizer,
	gate ports.AccessGate,
	notifier ports.CompletionNotifier,
) *DefaultExportService {
	return &DefaultExportService{
		jobs:      jobs,
		runs:      runs,
		resolver:  resolver,
		store:     store,
		planner:   planner,
		executor:  executor,
		finalizer: finalizer,
		gate:      gate,
		notifier:  notifier,
		jobLocks:  make(map[string]*sync.Mutex),
	}
}

var _ ports.ExportService = (*DefaultExportService)(nil)

func (s *DefaultExportService) lockJob(id string) func() {
	s.mu.Lock()
	l, ok := s.jobLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.jobLocks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *DefaultExportService) forgetJob(id string) {
	s.mu.Lock()
	delete(s.jobLocks, id)
	s.mu.Unlock()
}

func (s *DefaultExportService) CreateExport(ctx context.Context, req domain.ExportRequest) (domain.ExportStatus, error) {
	log.Printf("[DEBUG] CreateExport called - query: %s, source: %s, format: %s, org_id: %s", req.Query.Name, req.Query.Source, req.Format, req.OrgID)

	if err := req.Validate(); err != nil {
		log.Printf("[DEBUG] CreateExport failed - invalid request: %v", err)
		return domain.ExportStatus{}, err
	}

	binding, err := s.resolver.Resolve(ctx, req.Query)
	if err != nil {
		log.Printf("[DEBUG] CreateExport failed - resolve source: %v", err)
		return domain.ExportStatus{}, err
	}

	job, progress, err := s.planner.Plan(ctx, req, binding.Source, binding.Renderer)
	if err != nil {
		log.Printf("[DEBUG] CreateExport failed - plan: %v", err)
		return domain.ExportStatus{}, err
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		log.Printf("[DEBUG] CreateExport failed - repository save error: %v", err)
		return domain.ExportStatus{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	run := domain.NewExportRun(job.ID, progress)
	if err := s.runs.Save(ctx, run); err != nil {
		log.Printf("[DEBUG] CreateExport failed - run save error: %v", err)
		return domain.ExportStatus{}, fmt.Errorf("save run %s: %w", job.ID, err)
	}

	log.Printf("[DEBUG] CreateExport completed successfully - job ID: %s, rows_total: %d", job.ID, job.RowsTotal)
	return domain.NewExportStatus(job, run), nil
}

func (s *DefaultExportService) load(ctx context.Context, id string) (domain.ExportJob, domain.ExportRun, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return domain.ExportJob{}, domain.ExportRun{}, err
	}
	run, err := s.runs.FindByJobID(ctx, id)
	if err != nil {
		return domain.ExportJob{}, domain.ExportRun{}, err
	}
	return job, run, nil
}

func (s *DefaultExportService) GetExport(ctx context.Context, id string) (domain.ExportStatus, error) {
	job, run, err := s.load(ctx, id)
	if err != nil {
		return domain.ExportStatus{}, err
	}
	return domain.NewExportStatus(job, run), nil
}

func (s *DefaultExportService) GetExportWithOrgCheck(ctx context.Context, id, orgID string) (domain.ExportStatus, error) {
	status, err := s.GetExport(ctx, id)
	if err != nil {
		return domain.ExportStatus{}, err
	}

	if status.Job.OrgID != orgID {
		log.Printf("[DEBUG] ExportService - org_id mismatch: job belongs to org_id=%s, requested org_id=%s", status.Job.OrgID, orgID)
		return domain.ExportStatus{}, domain.ErrJobNotFound // Don't reveal existence of exports from other orgs
	}

	return status, nil
}

func (s *DefaultExportService) ListExports(ctx context.Context, orgID, statusFilter string, offset, limit int) ([]domain.ExportStatus, int, error) {
	jobs, err := s.jobs.FindByOrgID(ctx, orgID)
	if err != nil {
		return nil, 0, err
	}

	var filtered []domain.ExportStatus
	for _, job := range jobs {
		run, err := s.runs.FindByJobID(ctx, job.ID)
		if err != nil {
			log.Printf("[DEBUG] ListExports - skipping job %s without run: %v", job.ID, err)
			continue
		}
		if statusFilter != "" && string(run.Status) != statusFilter {
			continue
		}
		filtered = append(filtered, domain.NewExportStatus(job, run))
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Job.CreatedAt.After(filtered[j].Job.CreatedAt)
	})

	total := len(filtered)
	if offset >= total {
		return []domain.ExportStatus{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return filtered[offset:end], total, nil
}

// StepExport processes one chunk. A failed step marks the run failed; the
// ledger keeps the last durably written position.
func (s *DefaultExportService) StepExport(ctx context.Context, id string) (domain.ExportStatus, error) {
	unlock := s.lockJob(id)
	defer unlock()

	job, run, err := s.load(ctx, id)
	if err != nil {
		return domain.ExportStatus{}, err
	}

	run, err = s.step(ctx, job, run)
	return domain.NewExportStatus(job, run), err
}

func (s *DefaultExportService) step(ctx context.Context, job domain.ExportJob, run domain.ExportRun) (domain.ExportRun, error) {
	switch run.Status {
	case domain.RunStatusFailed:
		return run, fmt.Errorf("step job %s: %w", job.ID, domain.ErrJobFailed)
	case domain.RunStatusCompleted:
		return run, fmt.Errorf("step job %s: %w", job.ID, domain.ErrJobAlreadyFinal)
	}

	binding, err := s.resolver.Resolve(ctx, job.Query)
	if err != nil {
		return s.fail(ctx, job, run, domain.NewWriteError(job.ID, fmt.Errorf("resolve source: %w", err)))
	}

	next, worked, err := s.executor.Step(ctx, job, run.Progress, binding.Source, binding.Renderer)
	if err != nil {
		return s.fail(ctx, job, run, err)
	}
	if !worked {
		return run, nil
	}

	updated := run.WithProgress(next)
	if err := s.runs.Save(ctx, updated); err != nil {
		// the chunk is on disk but the ledger is not; the job cannot resume safely
		log.Printf("[DEBUG] ExportService - ledger save failed for job %s after write: %v", job.ID, err)
		failed, _ := s.fail(ctx, job, run, domain.NewWriteError(job.ID, fmt.Errorf("save ledger: %w", err)))
		return failed, fmt.Errorf("save ledger for job %s: %w", job.ID, err)
	}
	return updated, nil
}

// fail records a terminal failure and notifies listeners
func (s *DefaultExportService) fail(ctx context.Context, job domain.ExportJob, run domain.ExportRun, cause error) (domain.ExportRun, error) {
	kind, ok := domain.KindOf(cause)
	if !ok {
		kind = domain.KindWrite
	}
	log.Printf("[DEBUG] ExportService - job %s failed (%s): %v", job.ID, kind, cause)

	failed := run.WithFailed(kind, cause.Error())
	if err := s.runs.Save(ctx, failed); err != nil {
		log.Printf("[DEBUG] ExportService - could not record failure of job %s: %v", job.ID, err)
	}

	outcome, _ := failed.Outcome(job.AutoDownload)
	s.notify(ctx, job, outcome)
	return failed, cause
}

func (s *DefaultExportService) notify(ctx context.Context, job domain.ExportJob, outcome domain.JobOutcome) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ExportFinished(ctx, job, outcome); err != nil {
		log.Printf("[DEBUG] ExportService - notification failed for job %s: %v", job.ID, err)
	}
}

// RunExport steps the export to completion and finalizes it
func (s *DefaultExportService) RunExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	log.Printf("[DEBUG] RunExport called - job ID: %s", id)

	unlock := s.lockJob(id)
	job, run, err := s.load(ctx, id)
	if err != nil {
		unlock()
		return domain.JobOutcome{}, err
	}

	for !run.IsTerminal() && !run.Progress.IsComplete() {
		if err := ctx.Err(); err != nil {
			unlock()
			return domain.JobOutcome{}, err
		}
		run, err = s.step(ctx, job, run)
		if err != nil {
			unlock()
			if run.IsTerminal() {
				return s.FinalizeExport(ctx, id)
			}
			return domain.JobOutcome{}, err
		}
	}
	unlock()

	return s.FinalizeExport(ctx, id)
}

// FinalizeExport produces the outcome once. Finalizing a terminal run returns
// its recorded outcome without re-checking access or notifying again, except
// that a run which failed before writing any rows is recorded as
// KindArtifactMissing.
func (s *DefaultExportService) FinalizeExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	unlock := s.lockJob(id)
	defer unlock()

	job, run, err := s.load(ctx, id)
	if err != nil {
		return domain.JobOutcome{}, err
	}

	if run.Status == domain.RunStatusFailed && run.Progress.NothingWritten() && !run.FailedWith(domain.KindArtifactMissing) {
		// every step failed; the listeners already heard about the failure
		missing := run.WithFailed(domain.KindArtifactMissing, noRowsWritten(run.Progress))
		if err := s.runs.Save(ctx, missing); err != nil {
			return domain.JobOutcome{}, fmt.Errorf("save outcome for job %s: %w", id, err)
		}
		log.Printf("[DEBUG] FinalizeExport - job %s failed before writing any rows", id)
		outcome, _ := missing.Outcome(job.AutoDownload)
		return outcome, nil
	}
	if outcome, ok := run.Outcome(job.AutoDownload); ok {
		log.Printf("[DEBUG] FinalizeExport - job %s already %s", id, run.Status)
		return outcome, nil
	}

	outcome, err := s.finalizer.Finalize(ctx, job, run.Progress, s.gate)
	if err != nil {
		return domain.JobOutcome{}, err
	}

	if outcome.IsCompleted() {
		run = run.WithCompleted(outcome.ArtifactURI)
	} else {
		run = run.WithFailed(outcome.Reason, outcome.Message)
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return domain.JobOutcome{}, fmt.Errorf("save outcome for job %s: %w", id, err)
	}

	s.notify(ctx, job, outcome)
	log.Printf("[DEBUG] FinalizeExport completed - job ID: %s, status: %s", id, outcome.Status)
	return outcome, nil
}

func (s *DefaultExportService) OpenArtifact(ctx context.Context, id string) (domain.ExportJob, io.ReadCloser, error) {
	job, run, err := s.load(ctx, id)
	if err != nil {
		return domain.ExportJob{}, nil, err
	}

	switch run.Status {
	case domain.RunStatusCompleted:
	case domain.RunStatusFailed:
		return domain.ExportJob{}, nil, fmt.Errorf("open artifact of job %s: %w", id, domain.ErrJobFailed)
	default:
		return domain.ExportJob{}, nil, fmt.Errorf("open artifact of job %s: %w", id, domain.ErrJobIncomplete)
	}

	decision, err := s.gate.Check(ctx, job.OutputPath)
	if err != nil || decision != domain.AccessAllow {
		return domain.ExportJob{}, nil, &domain.ExportError{Kind: domain.KindAccessDenied, JobID: id, Err: err}
	}

	rc, err := s.store.Open(ctx, job.OutputPath)
	if err != nil {
		return domain.ExportJob{}, nil, &domain.ExportError{Kind: domain.KindArtifactMissing, JobID: id, Err: err}
	}
	return job, rc, nil
}

func (s *DefaultExportService) DeleteExport(ctx context.Context, id string) error {
	unlock := s.lockJob(id)
	defer unlock()

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, job.OutputPath); err != nil && !isArtifactMissing(err) {
		return fmt.Errorf("remove artifact of job %s: %w", id, err)
	}
	if err := s.runs.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrRunNotFound) {
		return err
	}
	if err := s.jobs.Delete(ctx, id); err != nil {
		return err
	}

	s.forgetJob(id)
	log.Printf("[DEBUG] DeleteExport - removed job %s", id)
	return nil
}

func (s *DefaultExportService) ActiveRuns(ctx context.Context) ([]domain.ExportRun, error) {
	return s.runs.FindByStatus(ctx, domain.RunStatusPlanned, domain.RunStatusRunning)
}

// PurgeOlderThan removes every export created before cutoff, whatever its state
func (s *DefaultExportService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := s.jobs.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, job := range jobs {
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.DeleteExport(ctx, job.ID); err != nil {
			log.Printf("[DEBUG] PurgeOlderThan - failed to delete job %s: %v", job.ID, err)
			continue
		}
		purged++
	}

	log.Printf("[DEBUG] PurgeOlderThan - purged %d exports created before %s", purged, cutoff.Format(time.RFC3339))
	return purged, nil
}
