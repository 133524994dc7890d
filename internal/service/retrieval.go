package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/cloo-solutions/ragline/internal/telemetry"
)

const (
	// WarningNoSources is attached when no candidate survives the threshold.
	WarningNoSources = "no sources above threshold"

	groundedSystemPrompt = "You are an enterprise document assistant. Answer only from the numbered context passages. " +
		"If the context does not contain the answer, say that you do not know."
)

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the external generation model.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// RunRecorder persists finished query runs.
type RunRecorder interface {
	Create(ctx context.Context, run *domain.Run) error
}

// RetrievalService answers queries: embed, search, dedup, generate, guardrail.
type RetrievalService struct {
	embedder  QueryEmbedder
	search    *SearchService
	generator Generator
	runs      RunRecorder
	uuidGen   UUIDGenerator
	model     string
	log       *logger.Logger
}

type RetrievalOption func(*RetrievalService)

// WithRunRecorder records every successful answer as a run.
func WithRunRecorder(runs RunRecorder) RetrievalOption {
	return func(s *RetrievalService) { s.runs = runs }
}

// WithGenerationModel overrides the generator's default model.
func WithGenerationModel(model string) RetrievalOption {
	return func(s *RetrievalService) { s.model = model }
}

func WithRetrievalLogger(log *logger.Logger) RetrievalOption {
	return func(s *RetrievalService) { s.log = log }
}

func NewRetrievalService(embedder QueryEmbedder, search *SearchService, generator Generator, opts ...RetrievalOption) *RetrievalService {
	s := &RetrievalService{
		embedder:  embedder,
		search:    search,
		generator: generator,
		uuidGen:   &DefaultUUIDGenerator{},
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer runs the query pipeline. Validation happens before any external call.
// Embedding and generation failures abort with EmbeddingError or GenerationError;
// quality problems are returned as warnings on a successful result.
func (s *RetrievalService) Answer(ctx context.Context, in domain.QueryInput) (*domain.QueryResult, error) {
	if err := domain.ValidateQueryInput(in); err != nil {
		return nil, err
	}
	startedAt := time.Now().UTC()

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Answer", telemetry.SpanAttributes{
		PipelineID: in.Scope,
		Operation:  "query",
	})
	defer span.End()

	vector, err := s.embedder.EmbedQuery(ctx, in.Query)
	if err != nil {
		span.SetError(err)
		if domain.IsEmbeddingError(err) {
			return nil, err
		}
		return nil, domain.NewEmbeddingError("failed to embed query", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources, err := s.search.Search(ctx, vector, in.Scope, in.TopK, in.Threshold)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if in.Dedup {
		sources = DedupSources(sources)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, domain.GenerationRequest{
		Prompt: BuildPrompt(in.Query, sources),
		System: groundedSystemPrompt,
		Model:  s.model,
	})
	if err != nil {
		span.SetError(err)
		if domain.IsGenerationError(err) {
			return nil, err
		}
		return nil, domain.NewGenerationError("failed to generate answer", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.QueryResult{Sources: sources, Warnings: []string{}}
	if len(sources) == 0 {
		result.Warnings = append(result.Warnings, WarningNoSources)
		s.log.Warn("query returned no sources", "pipeline_id", in.Scope, "top_k", in.TopK, "threshold", in.Threshold)
	}

	masked, guardWarnings := RunGuardrails(answer, result.SourceTexts())
	result.Answer = masked
	result.Warnings = append(result.Warnings, guardWarnings...)

	s.recordRun(ctx, in, result, startedAt)
	return result, nil
}

// DedupSources keeps the first source for each content hash, preserving rank.
func DedupSources(sources []domain.ScoredSource) []domain.ScoredSource {
	seen := make(map[string]struct{}, len(sources))
	out := make([]domain.ScoredSource, 0, len(sources))
	for _, src := range sources {
		h := domain.ContentHash(src.Text)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, src)
	}
	return out
}

// BuildContext renders sources as "[chunkID] text" blocks separated by blank lines.
func BuildContext(sources []domain.ScoredSource) string {
	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = fmt.Sprintf("[%s] %s", src.ChunkID, src.Text)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt combines the question with its grounding context.
func BuildPrompt(query string, sources []domain.ScoredSource) string {
	return fmt.Sprintf("Question: %s\n\nContext:\n%s", query, BuildContext(sources))
}

type runInput struct {
	Query     string  `json:"q"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
	Dedup     bool    `json:"dedup"`
}

type runSource struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type runOutput struct {
	Answer   string      `json:"answer"`
	Sources  []runSource `json:"sources"`
	Warnings []string    `json:"warnings"`
}

func (s *RetrievalService) recordRun(ctx context.Context, in domain.QueryInput, result *domain.QueryResult, startedAt time.Time) {
	if s.runs == nil {
		return
	}

	sources := make([]runSource, len(result.Sources))
	for i, src := range result.Sources {
		sources[i] = runSource{ChunkID: src.ChunkID, Text: src.Text, Score: src.Score}
	}

	run := &domain.Run{
		ID:         s.uuidGen.NewString(),
		PipelineID: in.Scope,
		Kind:       domain.RunKindQuery,
		Status:     domain.RunStatusSuccess,
		Input:      runInput{Query: in.Query, TopK: in.TopK, Threshold: in.Threshold, Dedup: in.Dedup},
		Output:     runOutput{Answer: result.Answer, Sources: sources, Warnings: result.Warnings},
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.log.Warn("failed to record query run", "pipeline_id", in.Scope, "error", err)
	}
}
