package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/cloo-solutions/ragline/internal/queue"
	"github.com/cloo-solutions/ragline/internal/service"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxRetries is the maximum number of attempts for a failing job
	MaxRetries = 3
	// DefaultBatchSize is how many jobs one poll claims
	DefaultBatchSize = 16
	// DefaultConcurrency bounds how many files are indexed at once
	DefaultConcurrency = 4
)

// FileIndexer indexes one uploaded file.
type FileIndexer interface {
	IndexFile(ctx context.Context, fileID string) (*service.IndexReport, error)
}

// IndexWorker drains the index queue.
type IndexWorker struct {
	queue       queue.Queue
	indexer     FileIndexer
	log         *logger.Logger
	batchSize   int
	concurrency int
}

// NewIndexWorker creates an IndexWorker. Non-positive sizes fall back to defaults.
func NewIndexWorker(q queue.Queue, indexer FileIndexer, concurrency int, log *logger.Logger) *IndexWorker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &IndexWorker{
		queue:       q,
		indexer:     indexer,
		log:         log.With("component", "index_worker"),
		batchSize:   max(DefaultBatchSize, concurrency),
		concurrency: concurrency,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.queue.Claim(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim index jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	w.log.Info("processing index jobs", "count", len(jobs))

	// Job failures are recorded on the job, so the group never sees an error.
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := w.processJob(ctx, job); err != nil {
				w.log.Error("error processing job", "job_id", job.ID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	w.log.Debug("indexing file", "job_id", job.ID, "file_id", job.FileID)

	report, err := w.indexer.IndexFile(ctx, job.FileID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	w.log.Info("job completed",
		"job_id", job.ID,
		"file_id", job.FileID,
		"chunks", report.Chunks,
		"warnings", len(report.Warnings),
	)
	return nil
}

func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	if !retryable(jobErr) {
		w.log.Warn("job failed permanently", "job_id", job.ID, "error", jobErr)
		if err := w.queue.Fail(ctx, job.ID, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	if job.Retries+1 >= MaxRetries {
		w.log.Warn("job exceeded max retries", "job_id", job.ID, "max_retries", MaxRetries, "error", jobErr)
		if err := w.queue.Fail(ctx, job.ID, fmt.Sprintf("max retries exceeded: %v", jobErr)); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	w.log.Info("job will be retried", "job_id", job.ID, "attempt", job.Retries+1, "max_retries", MaxRetries)
	if err := w.queue.Retry(ctx, job, fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return nil
}

// retryable reports whether another attempt could succeed. Bad input and
// missing files fail the same way every time.
func retryable(err error) bool {
	switch {
	case domain.IsValidationError(err),
		domain.HasCode(err, domain.ErrCodeNotFound),
		domain.HasCode(err, domain.ErrCodeInvalidOperation):
		return false
	}
	return true
}
