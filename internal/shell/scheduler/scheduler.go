package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/identity"
	"insights-export/internal/shell/executor"
)

// sweepLockKey elects the replica that runs the retention sweep
const sweepLockKey = "retention-sweep"

type Config struct {
	// StepInterval is the delay between driver ticks
	StepInterval time.Duration

	// SweepSchedule is a cron expression; empty disables the sweep
	SweepSchedule string

	// Retention is the age after which exports are purged; 0 disables the sweep
	Retention time.Duration

	InstanceID string
}

// StepScheduler drives exports in the background: every tick steps each active
// run once and finalizes runs whose ledger is complete. A second cron entry
// purges exports older than the retention period.
type StepScheduler struct {
	service ports.ExportService
	locks   executor.LockManager
	cfg     Config
	cron    *cron.Cron
	now     func() time.Time
}

// NewStepScheduler creates a driver; locks may be nil for a single replica
func NewStepScheduler(service ports.ExportService, locks executor.LockManager, cfg Config) *StepScheduler {
	return &StepScheduler{
		service: service,
		locks:   locks,
		cfg:     cfg,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the cron entries and blocks until ctx is cancelled
func (s *StepScheduler) Start(ctx context.Context) error {
	log.Printf("[%s] Starting step scheduler (interval: %v, sweep: %q)", s.cfg.InstanceID, s.cfg.StepInterval, s.cfg.SweepSchedule)

	if s.cfg.StepInterval <= 0 {
		return fmt.Errorf("invalid step interval: %v", s.cfg.StepInterval)
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.StepInterval), func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule step tick: %w", err)
	}

	if s.cfg.SweepSchedule != "" && s.cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() { s.Sweep(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule retention sweep: %w", err)
		}
	}

	s.cron.Start()

	<-ctx.Done()
	log.Printf("[%s] Scheduler context cancelled, stopping", s.cfg.InstanceID)
	s.Stop()
	return nil
}

func (s *StepScheduler) Stop() {
	log.Printf("[%s] Stopping step scheduler", s.cfg.InstanceID)
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("[%s] Step scheduler stopped", s.cfg.InstanceID)
}

// Tick advances every active export by one step, or finalizes it when its
// ledger is complete. It returns the number of exports it advanced.
func (s *StepScheduler) Tick(ctx context.Context) int {
	runs, err := s.service.ActiveRuns(ctx)
	if err != nil {
		log.Printf("[%s] Error listing active exports: %v", s.cfg.InstanceID, err)
		return 0
	}

	advanced := 0
	for _, run := range runs {
		if ctx.Err() != nil {
			return advanced
		}
		if s.advance(ctx, run.JobID) {
			advanced++
		}
	}

	if len(runs) > 0 {
		log.Printf("[%s] Tick advanced %d of %d active exports", s.cfg.InstanceID, advanced, len(runs))
	}
	return advanced
}

func (s *StepScheduler) advance(ctx context.Context, jobID string) bool {
	status, err := s.service.GetExport(ctx, jobID)
	if err != nil {
		log.Printf("[%s] Error loading export %s: %v", s.cfg.InstanceID, jobID, err)
		return false
	}
	if status.Run.IsTerminal() {
		return false
	}

	// background work acts as the user who requested the export
	jobCtx := identity.ContextForJob(ctx, status.Job)

	if status.Run.Progress.IsComplete() {
		outcome, err := s.service.FinalizeExport(jobCtx, jobID)
		if err != nil {
			s.logError("finalizing", jobID, err)
			return false
		}
		log.Printf("[%s] Finalized export %s: %s", s.cfg.InstanceID, jobID, outcome.Status)
		return true
	}

	if _, err := s.service.StepExport(jobCtx, jobID); err != nil {
		s.logError("stepping", jobID, err)
		return false
	}
	return true
}

func (s *StepScheduler) logError(action, jobID string, err error) {
	if errors.Is(err, domain.ErrLockNotAcquirable) {
		log.Printf("[%s] Export %s is driven by another instance, skipping", s.cfg.InstanceID, jobID)
		return
	}
	log.Printf("[%s] Error %s export %s: %v", s.cfg.InstanceID, action, jobID, err)
}

// Sweep purges exports older than the retention period. With a lock manager
// only the replica holding the sweep lock runs it.
func (s *StepScheduler) Sweep(ctx context.Context) int {
	if s.cfg.Retention <= 0 {
		return 0
	}

	if s.locks != nil {
		acquired, err := s.locks.TryAcquire(ctx, sweepLockKey)
		if err != nil {
			log.Printf("[%s] Error acquiring sweep lock: %v", s.cfg.InstanceID, err)
			return 0
		}
		if !acquired {
			log.Printf("[%s] Retention sweep running elsewhere, skipping", s.cfg.InstanceID)
			return 0
		}
		defer func() {
			if err := s.locks.Release(context.WithoutCancel(ctx), sweepLockKey); err != nil {
				log.Printf("[%s] Failed to release sweep lock: %v", s.cfg.InstanceID, err)
			}
		}()
	}

	cutoff := s.now().Add(-s.cfg.Retention)
	purged, err := s.service.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("[%s] Retention sweep failed: %v", s.cfg.InstanceID, err)
		return 0
	}

	log.Printf("[%s] Retention sweep purged %d exports created before %s", s.cfg.InstanceID, purged, cutoff.Format(time.RFC3339))
	return purged
}
