package domain

import "time"

// RunKind identifies what a pipeline run did
type RunKind string

const (
	RunKindQuery RunKind = "query"
)

const (
	RunStatusSuccess = "success"
)

// Run records one pipeline execution with its input and output payloads.
// Input and Output are stored as JSON.
type Run struct {
	ID         string
	PipelineID string
	Kind       RunKind
	Status     string
	Input      any
	Output     any
	StartedAt  time.Time
	FinishedAt time.Time
}
