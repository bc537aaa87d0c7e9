package storage

import (
	"context"
	"sort"
	"sync"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/usecases"
)

type MemoryJobRepository struct {
	jobs map[string]domain.ExportJob
	mu   sync.RWMutex
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]domain.ExportJob),
		mu:   sync.RWMutex{},
	}
}

var _ usecases.JobRepository = (*MemoryJobRepository)(nil)

func (r *MemoryJobRepository) Save(ctx context.Context, job domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	return nil
}

func (r *MemoryJobRepository) FindByID(ctx context.Context, id string) (domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return domain.ExportJob{}, domain.ErrJobNotFound
	}

	return job, nil
}

func (r *MemoryJobRepository) FindAll(ctx context.Context) ([]domain.ExportJob, error) {
	return r.filter(func(domain.ExportJob) bool { return true }), nil
}

func (r *MemoryJobRepository) FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error) {
	return r.filter(func(job domain.ExportJob) bool { return job.OrgID == orgID }), nil
}

func (r *MemoryJobRepository) filter(keep func(domain.ExportJob) bool) []domain.ExportJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]domain.ExportJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if keep(job) {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

func (r *MemoryJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; !exists {
		return domain.ErrJobNotFound
	}

	delete(r.jobs, id)
	return nil
}

type MemoryRunRepository struct {
	runs map[string]domain.ExportRun
	mu   sync.RWMutex
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs: make(map[string]domain.ExportRun),
	}
}

var _ usecases.RunRepository = (*MemoryRunRepository)(nil)

func (r *MemoryRunRepository) Save(ctx context.Context, run domain.ExportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.JobID] = run
	return nil
}

func (r *MemoryRunRepository) FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[jobID]
	if !exists {
		return domain.ExportRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

func (r *MemoryRunRepository) FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]domain.ExportRun, 0)
	for _, run := range r.runs {
		if hasStatus(run.Status, statuses) {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartTime.Before(runs[j].StartTime) })
	return runs, nil
}

func (r *MemoryRunRepository) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[jobID]; !exists {
		return domain.ErrRunNotFound
	}

	delete(r.runs, jobID)
	return nil
}

func hasStatus(status domain.RunStatus, statuses []domain.RunStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
