package executor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

type fakeLockManager struct {
	mu         sync.Mutex
	acquire    bool
	acquireErr error
	acquired   []string
	released   []string
	extended   int
}

func (l *fakeLockManager) TryAcquire(ctx context.Context, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.acquire {
		l.acquired = append(l.acquired, jobID)
	}
	return l.acquire, nil
}

func (l *fakeLockManager) Release(ctx context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, jobID)
	return nil
}

func (l *fakeLockManager) Extend(ctx context.Context, jobID string, additionalTTL time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extended++
	return nil
}

func (l *fakeLockManager) IsLocked(ctx context.Context, jobID string) (bool, error) {
	return false, nil
}

// fakeExportService records calls; unset function fields return zero values
type fakeExportService struct {
	status       domain.ExportStatus
	stepFunc     func(id string) (domain.ExportStatus, error)
	finalizeFunc func(id string) (domain.JobOutcome, error)
	runFunc      func(id string) (domain.JobOutcome, error)
	createFunc   func(req domain.ExportRequest) (domain.ExportStatus, error)
	deleted      []string
}

var _ ports.ExportService = (*fakeExportService)(nil)

func (f *fakeExportService) CreateExport(ctx context.Context, req domain.ExportRequest) (domain.ExportStatus, error) {
	return f.createFunc(req)
}
func (f *fakeExportService) GetExport(ctx context.Context, id string) (domain.ExportStatus, error) {
	return f.status, nil
}
func (f *fakeExportService) GetExportWithOrgCheck(ctx context.Context, id, orgID string) (domain.ExportStatus, error) {
	return f.status, nil
}
func (f *fakeExportService) ListExports(ctx context.Context, orgID, statusFilter string, offset, limit int) ([]domain.ExportStatus, int, error) {
	return nil, 0, nil
}
func (f *fakeExportService) StepExport(ctx context.Context, id string) (domain.ExportStatus, error) {
	return f.stepFunc(id)
}
func (f *fakeExportService) RunExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	return f.runFunc(id)
}
func (f *fakeExportService) FinalizeExport(ctx context.Context, id string) (domain.JobOutcome, error) {
	return f.finalizeFunc(id)
}
func (f *fakeExportService) OpenArtifact(ctx context.Context, id string) (domain.ExportJob, io.ReadCloser, error) {
	return domain.ExportJob{}, nil, nil
}
func (f *fakeExportService) DeleteExport(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeExportService) ActiveRuns(ctx context.Context) ([]domain.ExportRun, error) {
	return nil, nil
}
func (f *fakeExportService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func runningStatus(processed, total int) domain.ExportStatus {
	run := domain.NewExportRun("job-1", domain.ProgressState{RowsProcessed: processed, RowsTotal: total})
	return domain.ExportStatus{Job: domain.ExportJob{ID: "job-1", Format: domain.FormatCSV}, Run: run}
}

func TestGuardedExportServiceStep(t *testing.T) {
	inner := &fakeExportService{status: runningStatus(0, 10)}
	inner.stepFunc = func(id string) (domain.ExportStatus, error) { return runningStatus(4, 10), nil }
	locks := &fakeLockManager{acquire: true}
	svc := NewGuardedExportService(inner, locks, 0, "test-instance")

	rowsBefore := testutil.ToFloat64(ExportRowsWritten)
	okBefore := testutil.ToFloat64(ExportSteps.WithLabelValues("ok"))

	status, err := svc.StepExport(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("StepExport failed: %v", err)
	}
	if status.Run.Progress.RowsProcessed != 4 {
		t.Errorf("Expected inner status, got %+v", status.Run.Progress)
	}
	if len(locks.acquired) != 1 || len(locks.released) != 1 {
		t.Errorf("Expected lock acquired and released once, got %v / %v", locks.acquired, locks.released)
	}
	if got := testutil.ToFloat64(ExportRowsWritten) - rowsBefore; got != 4 {
		t.Errorf("Expected 4 rows recorded, got %v", got)
	}
	if got := testutil.ToFloat64(ExportSteps.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("Expected one ok step recorded, got %v", got)
	}
}

func TestGuardedExportServiceLockHeldElsewhere(t *testing.T) {
	called := false
	inner := &fakeExportService{status: runningStatus(0, 10)}
	inner.stepFunc = func(id string) (domain.ExportStatus, error) { called = true; return inner.status, nil }
	inner.finalizeFunc = func(id string) (domain.JobOutcome, error) { called = true; return domain.JobOutcome{}, nil }
	svc := NewGuardedExportService(inner, &fakeLockManager{acquire: false}, 0, "test-instance")

	if _, err := svc.StepExport(context.Background(), "job-1"); !errors.Is(err, domain.ErrLockNotAcquirable) {
		t.Errorf("Expected ErrLockNotAcquirable from step, got %v", err)
	}
	if _, err := svc.FinalizeExport(context.Background(), "job-1"); !errors.Is(err, domain.ErrLockNotAcquirable) {
		t.Errorf("Expected ErrLockNotAcquirable from finalize, got %v", err)
	}
	if err := svc.DeleteExport(context.Background(), "job-1"); !errors.Is(err, domain.ErrLockNotAcquirable) {
		t.Errorf("Expected ErrLockNotAcquirable from delete, got %v", err)
	}
	if called || len(inner.deleted) != 0 {
		t.Error("Expected inner service not to be called")
	}
}

func TestGuardedExportServiceAcquireError(t *testing.T) {
	boom := errors.New("redis down")
	inner := &fakeExportService{}
	svc := NewGuardedExportService(inner, &fakeLockManager{acquireErr: boom}, 0, "test-instance")

	if _, err := svc.RunExport(context.Background(), "job-1"); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped lock error, got %v", err)
	}
}

func TestGuardedExportServiceWithoutLockManager(t *testing.T) {
	inner := &fakeExportService{status: runningStatus(10, 10)}
	inner.finalizeFunc = func(id string) (domain.JobOutcome, error) {
		return domain.Completed(id, "/download", false), nil
	}
	svc := NewGuardedExportService(inner, nil, 0, "test-instance")

	before := testutil.ToFloat64(ExportsFinalized.WithLabelValues("completed", ""))
	outcome, err := svc.FinalizeExport(context.Background(), "job-1")
	if err != nil || !outcome.IsCompleted() {
		t.Fatalf("Expected completed outcome, got %+v / %v", outcome, err)
	}
	if got := testutil.ToFloat64(ExportsFinalized.WithLabelValues("completed", "")) - before; got != 1 {
		t.Errorf("Expected one finalized export recorded, got %v", got)
	}
}

func TestGuardedExportServiceSkipsRecordingFinalRuns(t *testing.T) {
	status := runningStatus(10, 10)
	status.Run = status.Run.WithCompleted("/download")
	inner := &fakeExportService{status: status}
	inner.finalizeFunc = func(id string) (domain.JobOutcome, error) {
		return domain.Completed(id, "/download", false), nil
	}
	svc := NewGuardedExportService(inner, nil, 0, "test-instance")

	before := testutil.ToFloat64(ExportsFinalized.WithLabelValues("completed", ""))
	if _, err := svc.FinalizeExport(context.Background(), "job-1"); err != nil {
		t.Fatalf("FinalizeExport failed: %v", err)
	}
	if got := testutil.ToFloat64(ExportsFinalized.WithLabelValues("completed", "")) - before; got != 0 {
		t.Errorf("Expected repeated finalize not to be recorded, got %v", got)
	}
}

func TestGuardedExportServiceExtendsLock(t *testing.T) {
	inner := &fakeExportService{status: runningStatus(0, 10)}
	inner.runFunc = func(id string) (domain.JobOutcome, error) {
		time.Sleep(60 * time.Millisecond)
		return domain.Completed(id, "/download", false), nil
	}
	locks := &fakeLockManager{acquire: true}
	svc := NewGuardedExportService(inner, locks, 20*time.Millisecond, "test-instance")

	if _, err := svc.RunExport(context.Background(), "job-1"); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if locks.extended == 0 {
		t.Error("Expected lock to be extended during a long run")
	}
	if len(locks.released) != 1 {
		t.Errorf("Expected lock released once, got %d", len(locks.released))
	}
}

func TestGuardedExportServiceCreateCountsFormat(t *testing.T) {
	inner := &fakeExportService{}
	inner.createFunc = func(req domain.ExportRequest) (domain.ExportStatus, error) {
		return domain.ExportStatus{Job: domain.ExportJob{Format: req.Format}}, nil
	}
	svc := NewGuardedExportService(inner, nil, 0, "test-instance")

	before := testutil.ToFloat64(ExportsPlanned.WithLabelValues("xml"))
	if _, err := svc.CreateExport(context.Background(), domain.ExportRequest{Format: domain.FormatXML}); err != nil {
		t.Fatalf("CreateExport failed: %v", err)
	}
	if got := testutil.ToFloat64(ExportsPlanned.WithLabelValues("xml")) - before; got != 1 {
		t.Errorf("Expected one planned xml export, got %v", got)
	}
}
