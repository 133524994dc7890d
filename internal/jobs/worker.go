package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/ragline/internal/logger"
)

// maxBackoffFactor caps how far the poll interval stretches after repeated failures.
const maxBackoffFactor = 8

// JobProcessor runs one pass over the index queue.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until its context is cancelled or Stop is called.
// A pass runs immediately on Start; after that the worker waits pollInterval
// between passes, doubling the wait while passes keep failing.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	log          *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		log:          log.With("component", "worker"),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until the worker is stopped.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	w.log.Info("worker started", "poll_interval", w.pollInterval.String())

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stop:
			w.log.Info("worker stopped", "reason", "stop requested")
			return
		case <-timer.C:
		}

		if err := w.processor.ProcessJobs(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			w.log.Error("job pass failed", "error", err, "consecutive_failures", failures)
		} else {
			failures = 0
		}
		timer.Reset(w.nextDelay(failures))
	}
}

func (w *Worker) nextDelay(failures int) time.Duration {
	factor := 1
	for i := 0; i < failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return w.pollInterval * time.Duration(factor)
}

// Stop signals the loop and waits for the in-flight pass to finish. It is safe
// to call more than once, but only after Start has been called.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	w.log.Info("worker shutdown complete")
}
