// Package telemetry provides Sentry-based distributed tracing utilities.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/getsentry/sentry-go"
)

const serviceName = "ragline"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry with tracing enabled and returns a flush function.
// An empty DSN leaves Sentry disabled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 || cfg.TracesSampleRate > 1 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
		Debug:            cfg.Debug,
		ServerName:       serviceName,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry init: %w", err)
	}

	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler never traces health checks and keeps the parent's decision for
// child spans.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" {
			return 0
		}
		var noParent sentry.SpanID
		if ctx.Span.ParentSpanID != noParent {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes tags a pipeline span.
type SpanAttributes struct {
	PipelineID string
	FileID     string
	DocumentID string
	Model      string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	for tag, value := range map[string]string{
		"pipeline_id": a.PipelineID,
		"file_id":     a.FileID,
		"document_id": a.DocumentID,
		"model":       a.Model,
	} {
		if value != "" {
			span.SetTag(tag, value)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a nil-safe handle on a sentry span.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span carried by ctx, or a new transaction
// when there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

func (s *Span) SetStatus(status sentry.SpanStatus) {
	if s.inner != nil {
		s.inner.Status = status
	}
}

// SetError records err on the span. Caller mistakes (validation, not found)
// only set the status; everything else is also captured as an exception.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	status := ErrorSpanStatus(err)
	s.inner.Status = status
	if status == sentry.SpanStatusInvalidArgument || status == sentry.SpanStatusNotFound || status == sentry.SpanStatusCanceled {
		return
	}
	CaptureError(s.inner.Context(), err)
}

// Context returns the span's context.
func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// ErrorSpanStatus maps an error to the span status reported for it.
func ErrorSpanStatus(err error) sentry.SpanStatus {
	switch {
	case errors.Is(err, context.Canceled):
		return sentry.SpanStatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return sentry.SpanStatusDeadlineExceeded
	case domain.IsValidationError(err):
		return sentry.SpanStatusInvalidArgument
	case domain.HasCode(err, domain.ErrCodeNotFound):
		return sentry.SpanStatusNotFound
	case domain.IsEmbeddingError(err), domain.IsGenerationError(err):
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}

// CaptureError sends err to the hub on ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
