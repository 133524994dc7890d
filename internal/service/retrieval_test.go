package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) Create(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func queryInput(q string) domain.QueryInput {
	return domain.QueryInput{Query: q, Scope: "p1", TopK: 5, Threshold: 0.4, Dedup: true}
}

func TestRetrievalService_Answer_RefundScenario(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	ctx := context.Background()
	query := []float32{1, 0}
	chunkText := "Refunds are processed within 14 days."

	embedder.On("EmbedQuery", mock.Anything, "What is the refund policy?").Return(query, nil)
	index.On("TopK", mock.Anything, query, "p1", 5).Return([]Candidate{
		{ChunkID: "c1", Text: chunkText, Score: score(0.8)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
		return req.System != "" &&
			assert.ObjectsAreEqual("Question: What is the refund policy?\n\nContext:\n[c1] "+chunkText, req.Prompt)
	})).Return(chunkText, nil)

	result, err := svc.Answer(ctx, queryInput("What is the refund policy?"))

	require.NoError(t, err)
	assert.Equal(t, chunkText, result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "c1", result.Sources[0].ChunkID)
	assert.Equal(t, 0.8, result.Sources[0].Score)
	assert.Empty(t, result.Warnings)
	embedder.AssertExpectations(t)
	index.AssertExpectations(t)
	generator.AssertExpectations(t)
}

func TestRetrievalService_Answer_Dedup(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{ChunkID: "a", Text: "same text", Score: score(0.9)},
		{ChunkID: "b", Text: "same text", Score: score(0.8)},
		{ChunkID: "c", Text: "other text", Score: score(0.7)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
		return req.Prompt == "Question: q\n\nContext:\n[a] same text\n\n[c] other text"
	})).Return("answer", nil)

	result, err := svc.Answer(context.Background(), queryInput("q"))

	require.NoError(t, err)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "a", result.Sources[0].ChunkID)
	assert.Equal(t, "c", result.Sources[1].ChunkID)
	generator.AssertExpectations(t)
}

func TestRetrievalService_Answer_NoDedupKeepsDuplicates(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{ChunkID: "a", Text: "same text", Score: score(0.9)},
		{ChunkID: "b", Text: "same text", Score: score(0.8)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("answer", nil)

	in := queryInput("q")
	in.Dedup = false
	result, err := svc.Answer(context.Background(), in)

	require.NoError(t, err)
	assert.Len(t, result.Sources, 2)
}

func TestRetrievalService_Answer_ValidationBeforeExternalCalls(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(new(MockVectorIndex)), generator)

	_, err := svc.Answer(context.Background(), domain.QueryInput{Query: "   ", TopK: 5})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	_, err = svc.Answer(context.Background(), domain.QueryInput{Query: "q", TopK: -1})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRetrievalService_Answer_EmbeddingFailure(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(new(MockVectorIndex)), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	result, err := svc.Answer(context.Background(), queryInput("q"))

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRetrievalService_Answer_GenerationFailure(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	result, err := svc.Answer(context.Background(), queryInput("q"))

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, domain.IsGenerationError(err))
}

func TestRetrievalService_Answer_NoSourcesWarning(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{ChunkID: "a", Text: "weak", Score: score(0.1)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("I do not know.", nil)

	result, err := svc.Answer(context.Background(), queryInput("q"))

	require.NoError(t, err)
	assert.Empty(t, result.Sources)
	assert.Equal(t, []string{WarningNoSources, WarningNoGrounding}, result.Warnings)
}

func TestRetrievalService_Answer_MasksGeneratedPII(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{ChunkID: "a", Text: "Support is reachable by phone and mail during office hours.", Score: score(0.9)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("Call 010-1234-5678 or mail help@corp.com", nil)

	result, err := svc.Answer(context.Background(), queryInput("q"))

	require.NoError(t, err)
	assert.Equal(t, "Call [전화번호] or mail [이메일]", result.Answer)
}

func TestRetrievalService_Answer_CanceledAfterEmbedding(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator)

	ctx, cancel := context.WithCancel(context.Background())
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return([]float32{1}, nil)

	_, err := svc.Answer(ctx, queryInput("q"))

	assert.ErrorIs(t, err, context.Canceled)
	index.AssertNotCalled(t, "TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRetrievalService_Answer_RecordsRun(t *testing.T) {
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorIndex)
	generator := new(MockGenerator)
	runs := new(MockRunRecorder)
	svc := NewRetrievalService(embedder, NewSearchService(index), generator, WithRunRecorder(runs))

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	index.On("TopK", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{ChunkID: "a", Text: "grounding", Score: score(0.9)},
	}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)
	runs.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Run) bool {
		return r.PipelineID == "p1" && r.Kind == domain.RunKindQuery && r.Status == domain.RunStatusSuccess
	})).Return(errors.New("insert failed"))

	result, err := svc.Answer(context.Background(), queryInput("q"))

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Answer)
	runs.AssertExpectations(t)
}

func TestRetrievalService_Answer_HashProviderEndToEnd(t *testing.T) {
	gw := embedding.NewGateway(embedding.NewHashProvider(64), embedding.Config{Dimensions: 64})
	text := "Refunds are processed within 14 days."
	index := NewMemoryIndex(
		IndexedChunk{ChunkID: "c1", Text: text, Scope: "p1", Vector: embedding.HashVector(text, 64)},
		IndexedChunk{ChunkID: "c2", Text: "Shipping is free over 50 dollars.", Scope: "p2",
			Vector: embedding.HashVector("Shipping is free over 50 dollars.", 64)},
	)
	generator := new(MockGenerator)
	generator.On("Generate", mock.Anything, mock.Anything).Return(text, nil)
	svc := NewRetrievalService(gw, NewSearchService(index), generator)

	result, err := svc.Answer(context.Background(), domain.QueryInput{Query: text, Scope: "p1", TopK: 5, Threshold: 0.4})

	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "c1", result.Sources[0].ChunkID)
	assert.InDelta(t, 1.0, result.Sources[0].Score, 1e-5)
}

func TestDedupSources_PreservesOrder(t *testing.T) {
	sources := []domain.ScoredSource{
		{ChunkID: "1", Text: "x"},
		{ChunkID: "2", Text: "y"},
		{ChunkID: "3", Text: "x"},
		{ChunkID: "4", Text: "z"},
	}

	out := DedupSources(sources)

	assert.Equal(t, []string{"1", "2", "4"}, []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID})
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
	assert.Equal(t, "[a] one\n\n[b] two", BuildContext([]domain.ScoredSource{
		{ChunkID: "a", Text: "one"},
		{ChunkID: "b", Text: "two"},
	}))
}
