package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"insights-export/internal/config"
	"insights-export/internal/core/domain"
	"insights-export/internal/core/usecases"
)

// NewRedisClient builds a client from the redis configuration section
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisJobRepository implements JobRepository using Redis
type RedisJobRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisJobRepository(client *redis.Client, keyPrefix string) *RedisJobRepository {
	return &RedisJobRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

var _ usecases.JobRepository = (*RedisJobRepository)(nil)

// jobKey returns the Redis key for a job
func (r *RedisJobRepository) jobKey(id string) string {
	return fmt.Sprintf("%sexport:%s", r.keyPrefix, id)
}

// jobsSetKey returns the Redis key for the set of all job IDs
func (r *RedisJobRepository) jobsSetKey() string {
	return fmt.Sprintf("%sexports", r.keyPrefix)
}

// orgJobsSetKey returns the Redis key for the set of job IDs for an org
func (r *RedisJobRepository) orgJobsSetKey(orgID string) string {
	return fmt.Sprintf("%sorg:%s:exports", r.keyPrefix, orgID)
}

func (r *RedisJobRepository) Save(ctx context.Context, job domain.ExportJob) error {
	jobJSON, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.jobKey(job.ID), jobJSON, 0)
	pipe.SAdd(ctx, r.jobsSetKey(), job.ID)
	pipe.SAdd(ctx, r.orgJobsSetKey(job.OrgID), job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (r *RedisJobRepository) FindByID(ctx context.Context, id string) (domain.ExportJob, error) {
	jobJSON, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if err == redis.Nil {
		return domain.ExportJob{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.ExportJob{}, fmt.Errorf("failed to get job: %w", err)
	}

	job, err := domain.ExportJobFromJSON(jobJSON)
	if err != nil {
		return domain.ExportJob{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, nil
}

func (r *RedisJobRepository) FindAll(ctx context.Context) ([]domain.ExportJob, error) {
	return r.findInSet(ctx, r.jobsSetKey())
}

func (r *RedisJobRepository) FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error) {
	return r.findInSet(ctx, r.orgJobsSetKey(orgID))
}

func (r *RedisJobRepository) findInSet(ctx context.Context, setKey string) ([]domain.ExportJob, error) {
	jobIDs, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job IDs: %w", err)
	}

	jobs := make([]domain.ExportJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := r.FindByID(ctx, jobID)
		if err != nil {
			// Skip jobs that fail to load (may have been deleted)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *RedisJobRepository) Delete(ctx context.Context, id string) error {
	job, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.jobKey(id))
	pipe.SRem(ctx, r.jobsSetKey(), id)
	pipe.SRem(ctx, r.orgJobsSetKey(job.OrgID), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// RedisRunRepository keeps one run per job plus a set of job IDs per status
type RedisRunRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisRunRepository(client *redis.Client, keyPrefix string) *RedisRunRepository {
	return &RedisRunRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

var _ usecases.RunRepository = (*RedisRunRepository)(nil)

func (r *RedisRunRepository) runKey(jobID string) string {
	return fmt.Sprintf("%srun:%s", r.keyPrefix, jobID)
}

func (r *RedisRunRepository) statusSetKey(status domain.RunStatus) string {
	return fmt.Sprintf("%sruns:%s", r.keyPrefix, status)
}

var allRunStatuses = []domain.RunStatus{
	domain.RunStatusPlanned, domain.RunStatusRunning, domain.RunStatusCompleted, domain.RunStatusFailed,
}

func (r *RedisRunRepository) Save(ctx context.Context, run domain.ExportRun) error {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal export run: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.runKey(run.JobID), runJSON, 0)
	for _, s := range allRunStatuses {
		if s == run.Status {
			pipe.ZAdd(ctx, r.statusSetKey(s), redis.Z{Score: float64(run.StartTime.Unix()), Member: run.JobID})
		} else {
			pipe.ZRem(ctx, r.statusSetKey(s), run.JobID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save export run: %w", err)
	}
	return nil
}

func (r *RedisRunRepository) FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error) {
	runJSON, err := r.client.Get(ctx, r.runKey(jobID)).Bytes()
	if err == redis.Nil {
		return domain.ExportRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.ExportRun{}, fmt.Errorf("failed to get export run: %w", err)
	}

	var run domain.ExportRun
	if err := json.Unmarshal(runJSON, &run); err != nil {
		return domain.ExportRun{}, fmt.Errorf("failed to unmarshal export run: %w", err)
	}
	return run, nil
}

func (r *RedisRunRepository) FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error) {
	runs := make([]domain.ExportRun, 0)
	for _, s := range statuses {
		jobIDs, err := r.client.ZRange(ctx, r.statusSetKey(s), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get runs with status %s: %w", s, err)
		}
		for _, jobID := range jobIDs {
			run, err := r.FindByJobID(ctx, jobID)
			if err != nil {
				continue
			}
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (r *RedisRunRepository) Delete(ctx context.Context, jobID string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.runKey(jobID))
	for _, s := range allRunStatuses {
		pipe.ZRem(ctx, r.statusSetKey(s), jobID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete export run: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// RedisLockManager implements distributed locks using Redis
type RedisLockManager struct {
	client     *redis.Client
	keyPrefix  string
	lockTTL    time.Duration
	instanceID string
}

func NewRedisLockManager(client *redis.Client, keyPrefix string, lockTTL time.Duration, instanceID string) *RedisLockManager {
	return &RedisLockManager{
		client:     client,
		keyPrefix:  keyPrefix,
		lockTTL:    lockTTL,
		instanceID: instanceID,
	}
}

// lockKey returns the Redis key for a lock
func (l *RedisLockManager) lockKey(jobID string) string {
	return fmt.Sprintf("%slock:export:%s", l.keyPrefix, jobID)
}

// TryAcquire attempts to acquire a lock for a job (non-blocking)
func (l *RedisLockManager) TryAcquire(ctx context.Context, jobID string) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.lockKey(jobID), l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return acquired, nil
}

// releaseScript only deletes the lock if this instance owns it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// extendScript only extends the TTL if this instance owns the lock
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Release releases a lock for a job
func (l *RedisLockManager) Release(ctx context.Context, jobID string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.lockKey(jobID)}, l.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("lock not owned by this instance")
	}
	return nil
}

// Extend extends the TTL of a lock (useful for long-running exports)
func (l *RedisLockManager) Extend(ctx context.Context, jobID string, additionalTTL time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.lockKey(jobID)}, l.instanceID, additionalTTL.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("lock not owned by this instance")
	}
	return nil
}

// IsLocked checks if a job is currently locked
func (l *RedisLockManager) IsLocked(ctx context.Context, jobID string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.lockKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return exists > 0, nil
}
