// Package queue carries index jobs from the API to the indexing worker.
package queue

import (
	"context"

	"github.com/cloo-solutions/ragline/internal/domain"
)

// Queue is a durable at-least-once queue of index jobs.
type Queue interface {
	Enqueue(ctx context.Context, fileID string) (*domain.IndexJob, error)
	// Claim moves up to limit pending jobs to processing and returns them.
	Claim(ctx context.Context, limit int) ([]*domain.IndexJob, error)
	Complete(ctx context.Context, jobID string) error
	// Retry puts a processing job back to pending and counts the attempt.
	Retry(ctx context.Context, job *domain.IndexJob, errMsg string) error
	Fail(ctx context.Context, jobID string, errMsg string) error
}
