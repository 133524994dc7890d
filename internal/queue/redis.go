package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "ragline:index"
	defaultFinishedTTL = 24 * time.Hour
)

// RedisQueue keeps live job records in a hash and job IDs in pending and
// processing lists. A claim moves an ID between the lists with LMOVE, so a
// crashed worker leaves its jobs visible in the processing list.
// Completed and failed jobs leave the hash and stay readable under their
// own key until finishedTTL expires.
type RedisQueue struct {
	rdb         *goredis.Client
	prefix      string
	finishedTTL time.Duration
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
}

type RedisOption func(*RedisQueue)

func WithRedisLogger(log *logger.Logger) RedisOption {
	return func(q *RedisQueue) {
		if log != nil {
			q.log = log
		}
	}
}

// WithFinishedTTL sets how long completed and failed jobs stay readable.
func WithFinishedTTL(ttl time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if ttl > 0 {
			q.finishedTTL = ttl
		}
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisQueue(rdb *goredis.Client, prefix string, opts ...RedisOption) *RedisQueue {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	q := &RedisQueue{
		rdb:         rdb,
		prefix:      prefix,
		finishedTTL: defaultFinishedTTL,
		log:         logger.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) jobsKey() string       { return q.prefix + ":jobs" }
func (q *RedisQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing" }
func (q *RedisQueue) finishedKey(id string) string {
	return q.prefix + ":finished:" + id
}

type redisJob struct {
	ID          string     `json:"id"`
	FileID      string     `json:"file_id"`
	Status      string     `json:"status"`
	Retries     int32      `json:"retries"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func toRedisJob(j *domain.IndexJob) redisJob {
	return redisJob{
		ID:          j.ID,
		FileID:      j.FileID,
		Status:      string(j.Status),
		Retries:     j.Retries,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		ProcessedAt: j.ProcessedAt,
	}
}

func (r redisJob) toDomain() *domain.IndexJob {
	return &domain.IndexJob{
		ID:          r.ID,
		FileID:      r.FileID,
		Status:      domain.IndexJobStatus(r.Status),
		Retries:     r.Retries,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		ProcessedAt: r.ProcessedAt,
	}
}

func (q *RedisQueue) save(ctx context.Context, pipe goredis.Pipeliner, job *domain.IndexJob) error {
	raw, err := json.Marshal(toRedisJob(job))
	if err != nil {
		return err
	}
	return pipe.HSet(ctx, q.jobsKey(), job.ID, raw).Err()
}

func decodeJob(id string, raw []byte) (*domain.IndexJob, error) {
	var rj redisJob
	if err := json.Unmarshal(raw, &rj); err != nil {
		return nil, fmt.Errorf("bad job payload %s: %w", id, err)
	}
	return rj.toDomain(), nil
}

// load reads a pending or processing job.
func (q *RedisQueue) load(ctx context.Context, id string) (*domain.IndexJob, error) {
	raw, err := q.rdb.HGet(ctx, q.jobsKey(), id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrIndexJobNotFound
		}
		return nil, err
	}
	return decodeJob(id, raw)
}

// Get returns the stored state of a job, including finished jobs that
// have not expired yet.
func (q *RedisQueue) Get(ctx context.Context, id string) (*domain.IndexJob, error) {
	job, err := q.load(ctx, id)
	if !errors.Is(err, domain.ErrIndexJobNotFound) {
		return job, err
	}
	raw, err := q.rdb.Get(ctx, q.finishedKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrIndexJobNotFound
		}
		return nil, err
	}
	return decodeJob(id, raw)
}

func (q *RedisQueue) Enqueue(ctx context.Context, fileID string) (*domain.IndexJob, error) {
	job := domain.NewIndexJob(q.newID(), fileID, q.now())
	if err := domain.ValidateIndexJob(job); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	_, err := q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if err := q.save(ctx, pipe, job); err != nil {
			return err
		}
		return pipe.LPush(ctx, q.pendingKey(), job.ID).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue index job: %w", err)
	}
	return job, nil
}

func (q *RedisQueue) Claim(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	if limit <= 0 {
		limit = 100
	}

	var jobs []*domain.IndexJob
	for len(jobs) < limit {
		id, err := q.rdb.LMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT").Result()
		if errors.Is(err, goredis.Nil) {
			break
		}
		if err != nil {
			return jobs, err
		}

		job, err := q.load(ctx, id)
		if errors.Is(err, domain.ErrIndexJobNotFound) {
			if err := q.rdb.LRem(ctx, q.processingKey(), 1, id).Err(); err != nil {
				q.log.Warn("failed to drop orphaned job id", "job_id", id, "error", err)
			}
			continue
		}
		if err != nil {
			return jobs, err
		}

		job.Status = domain.IndexJobStatusProcessing
		job.Error = ""
		job.ProcessedAt = nil
		if _, err := q.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			return q.save(ctx, pipe, job)
		}); err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *RedisQueue) finish(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error {
	job, err := q.load(ctx, jobID)
	if err != nil {
		return err
	}
	now := q.now()
	job.Status = status
	job.Error = errMsg
	job.ProcessedAt = &now

	raw, err := json.Marshal(toRedisJob(job))
	if err != nil {
		return err
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, jobID)
		pipe.HDel(ctx, q.jobsKey(), jobID)
		return pipe.Set(ctx, q.finishedKey(jobID), raw, q.finishedTTL).Err()
	})
	return err
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	return q.finish(ctx, jobID, domain.IndexJobStatusCompleted, "")
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string) error {
	return q.finish(ctx, jobID, domain.IndexJobStatusFailed, errMsg)
}

func (q *RedisQueue) Retry(ctx context.Context, job *domain.IndexJob, errMsg string) error {
	stored, err := q.load(ctx, job.ID)
	if err != nil {
		return err
	}
	stored.Status = domain.IndexJobStatusPending
	stored.Retries++
	stored.Error = errMsg

	_, err = q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		if err := q.save(ctx, pipe, stored); err != nil {
			return err
		}
		return pipe.LPush(ctx, q.pendingKey(), job.ID).Err()
	})
	return err
}
