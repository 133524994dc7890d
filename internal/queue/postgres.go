package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/google/uuid"
)

// JobStore is the index_jobs persistence the Postgres queue runs on.
type JobStore interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error
	Requeue(ctx context.Context, id string, errMsg string) error
}

// PostgresQueue keeps jobs in the index_jobs table. Claims use
// FOR UPDATE SKIP LOCKED so several workers can share the table.
type PostgresQueue struct {
	store JobStore
	now   func() time.Time
	newID func() string
}

func NewPostgresQueue(store JobStore) *PostgresQueue {
	return &PostgresQueue{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, fileID string) (*domain.IndexJob, error) {
	job := domain.NewIndexJob(q.newID(), fileID, q.now())
	if err := domain.ValidateIndexJob(job); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := q.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create index job: %w", err)
	}
	return job, nil
}

func (q *PostgresQueue) Claim(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	return q.store.ClaimPending(ctx, limit)
}

func (q *PostgresQueue) Complete(ctx context.Context, jobID string) error {
	return q.store.UpdateStatus(ctx, jobID, domain.IndexJobStatusCompleted, "")
}

func (q *PostgresQueue) Retry(ctx context.Context, job *domain.IndexJob, errMsg string) error {
	return q.store.Requeue(ctx, job.ID, errMsg)
}

func (q *PostgresQueue) Fail(ctx context.Context, jobID string, errMsg string) error {
	return q.store.UpdateStatus(ctx, jobID, domain.IndexJobStatusFailed, errMsg)
}
