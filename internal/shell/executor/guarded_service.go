package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// LockManager defines the interface for distributed locking
type LockManager interface {
	TryAcquire(ctx context.Context, jobID string) (bool, error)
	Release(ctx context.Context, jobID string) error
	Extend(ctx context.Context, jobID string, additionalTTL time.Duration) error
	IsLocked(ctx context.Context, jobID string) (bool, error)
}

// GuardedExportService wraps an ExportService with a distributed lock per job
// and records metrics. Operations that mutate a job fail with
// domain.ErrLockNotAcquirable while another replica holds its lock.
type GuardedExportService struct {
	ports.ExportService
	lockManager LockManager
	lockTTL     time.Duration
	instanceID  string
}

var _ ports.ExportService = (*GuardedExportService)(nil)

// NewGuardedExportService creates a guarded service; a nil lock manager only adds metrics
func NewGuardedExportService(inner ports.ExportService, lockManager LockManager, lockTTL time.Duration, instanceID string) *GuardedExportService {
	return &GuardedExportService{
		ExportService: inner,
		lockManager:   lockManager,
		lockTTL:       lockTTL,
		instanceID:    instanceID,
	}
}

// withLock runs fn while holding the job's lock, extending it until fn returns
func (s *GuardedExportService) withLock(ctx context.Context, jobID string, fn func() error) error {
	if s.lockManager == nil {
		return fn()
	}

	acquired, err := s.lockManager.TryAcquire(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		log.Printf("[%s] Export %s is being driven by another instance, skipping", s.instanceID, jobID)
		return fmt.Errorf("job %s: %w", jobID, domain.ErrLockNotAcquirable)
	}

	log.Printf("[%s] Acquired lock for export %s", s.instanceID, jobID)

	done := make(chan struct{})
	if s.lockTTL > 0 {
		go s.keepAlive(ctx, jobID, done)
	}

	// Ensure lock is released even if the operation panics
	defer func() {
		close(done)
		if err := s.lockManager.Release(context.WithoutCancel(ctx), jobID); err != nil {
			log.Printf("[%s] Failed to release lock for export %s: %v", s.instanceID, jobID, err)
		} else {
			log.Printf("[%s] Released lock for export %s", s.instanceID, jobID)
		}
	}()

	return fn()
}

func (s *GuardedExportService) keepAlive(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(s.lockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.lockManager.Extend(ctx, jobID, s.lockTTL); err != nil {
				log.Printf("[%s] Failed to extend lock for export %s: %v", s.instanceID, jobID, err)
			}
		}
	}
}

// alreadyFinal reports whether the job's run was terminal before an operation
func (s *GuardedExportService) alreadyFinal(ctx context.Context, id string) bool {
	status, err := s.ExportService.GetExport(ctx, id)
	return err == nil && status.Run.IsTerminal()
}

func recordOutcome(outcome domain.JobOutcome) {
	ExportsFinalized.WithLabelValues(string(outcome.Status), string(outcome.Reason)).Inc()
}

func (s *GuardedExportService) CreateExport(ctx context.Context, req domain.ExportRequest) (domain.ExportStatus, error) {
	status, err := s.ExportService.CreateExport(ctx, req)
	if err == nil {
		ExportsPlanned.WithLabelValues(string(status.Job.Format)).Inc()
	}
	return status, err
}

func (s *GuardedExportService) StepExport(ctx context.Context, id string) (domain.ExportStatus, error) {
	var status domain.ExportStatus
	err := s.withLock(ctx, id, func() error {
		before := 0
		if current, err := s.ExportService.GetExport(ctx, id); err == nil {
			before = current.Run.Progress.RowsProcessed
		}

		ExportsCurrentlyStepping.Inc()
		defer ExportsCurrentlyStepping.Dec()
		start := time.Now()

		var err error
		status, err = s.ExportService.StepExport(ctx, id)
		ExportStepDuration.Observe(time.Since(start).Seconds())

		switch written := status.Run.Progress.RowsProcessed - before; {
		case err != nil:
			ExportSteps.WithLabelValues("error").Inc()
		case written > 0:
			ExportSteps.WithLabelValues("ok").Inc()
			ExportRowsWritten.Add(float64(written))
		default:
			ExportSteps.WithLabelValues("noop").Inc()
		}
		return err
	})
	return status, err
}

func (s *GuardedExportService) RunExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	var outcome domain.JobOutcome
	err := s.withLock(ctx, id, func() error {
		final := s.alreadyFinal(ctx, id)

		var err error
		outcome, err = s.ExportService.RunExport(ctx, id)
		if err == nil && !final {
			recordOutcome(outcome)
		}
		return err
	})
	return outcome, err
}

func (s *GuardedExportService) FinalizeExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	var outcome domain.JobOutcome
	err := s.withLock(ctx, id, func() error {
		final := s.alreadyFinal(ctx, id)

		var err error
		outcome, err = s.ExportService.FinalizeExport(ctx, id)
		if err == nil && !final {
			recordOutcome(outcome)
		}
		return err
	})
	return outcome, err
}

func (s *GuardedExportService) DeleteExport(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func() error {
		return s.ExportService.DeleteExport(ctx, id)
	})
}
