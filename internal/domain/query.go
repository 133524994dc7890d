package domain

import "strings"

// Query defaults used when the caller leaves a field unset.
const (
	DefaultTopK      = 8
	DefaultThreshold = 0.4
)

// ScoredSource is one passage returned by similarity search.
type ScoredSource struct {
	ChunkID string
	Text    string
	Score   float64
}

// QueryInput is what an upstream caller supplies to the retrieval pipeline.
type QueryInput struct {
	Query     string
	Scope     string
	TopK      int
	Threshold float64
	Dedup     bool
}

// QueryResult is the outcome of answering one query.
type QueryResult struct {
	Answer   string
	Sources  []ScoredSource
	Warnings []string
}

// SourceTexts returns the texts of the sources in order.
func (r *QueryResult) SourceTexts() []string {
	texts := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		texts[i] = s.Text
	}
	return texts
}

// ValidateQueryInput rejects malformed input before any external call is made.
func ValidateQueryInput(in QueryInput) error {
	if strings.TrimSpace(in.Query) == "" {
		return NewValidationError("query text is required")
	}
	if in.TopK <= 0 {
		return NewValidationError("top_k must be positive")
	}
	return nil
}

// GenerationRequest is a single-shot call to a generation model.
type GenerationRequest struct {
	Prompt string
	System string
	Model  string
}
