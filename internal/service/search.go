package service

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/telemetry"
)

// Candidate is a ranked row from the vector store. Score is nil when the chunk
// has no vector for the query model.
type Candidate struct {
	ChunkID string
	Text    string
	Score   *float64
}

// VectorIndex returns the top k candidates in scope, ranked by similarity.
// An empty scope searches every document.
type VectorIndex interface {
	TopK(ctx context.Context, query []float32, scope string, k int) ([]Candidate, error)
}

type SearchService struct {
	index VectorIndex
}

func NewSearchService(index VectorIndex) *SearchService {
	return &SearchService{index: index}
}

// Search lets the store cut the ranking to topK first, then drops candidates
// below threshold or without a score. A narrow topK can therefore return fewer
// than topK sources, or none.
func (s *SearchService) Search(ctx context.Context, query []float32, scope string, topK int, threshold float64) ([]domain.ScoredSource, error) {
	if topK <= 0 {
		return nil, domain.NewValidationError("top_k must be positive")
	}
	if len(query) == 0 {
		return nil, domain.NewValidationError("query vector is empty")
	}

	ctx, span := telemetry.StartSpan(ctx, "search.TopK", telemetry.SpanAttributes{
		PipelineID: scope,
		Operation:  "search",
	})
	defer span.End()

	candidates, err := s.index.TopK(ctx, query, scope, topK)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return FilterCandidates(candidates, threshold), nil
}

// FilterCandidates applies the threshold to an already ranked candidate set and
// orders the survivors by score descending, chunk ID ascending.
func FilterCandidates(candidates []Candidate, threshold float64) []domain.ScoredSource {
	sources := make([]domain.ScoredSource, 0, len(candidates))
	for _, c := range candidates {
		if c.Score == nil || math.IsNaN(*c.Score) || *c.Score < threshold {
			continue
		}
		sources = append(sources, domain.ScoredSource{ChunkID: c.ChunkID, Text: c.Text, Score: *c.Score})
	}
	slices.SortStableFunc(sources, func(a, b domain.ScoredSource) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	return sources
}

// IndexedChunk is one searchable entry held by a MemoryIndex.
type IndexedChunk struct {
	ChunkID string
	Text    string
	Scope   string
	Vector  []float32
}

// MemoryIndex is an in-process brute-force VectorIndex scored by cosine similarity.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []IndexedChunk
}

func NewMemoryIndex(entries ...IndexedChunk) *MemoryIndex {
	idx := &MemoryIndex{}
	idx.Add(entries...)
	return idx
}

// Add appends entries. An entry with an existing chunk ID replaces the old one.
func (m *MemoryIndex) Add(entries ...IndexedChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		i := slices.IndexFunc(m.entries, func(x IndexedChunk) bool { return x.ChunkID == e.ChunkID })
		if i >= 0 {
			m.entries[i] = e
			continue
		}
		m.entries = append(m.entries, e)
	}
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TopK implements VectorIndex.
func (m *MemoryIndex) TopK(ctx context.Context, query []float32, scope string, k int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	candidates := make([]Candidate, 0, len(m.entries))
	for _, e := range m.entries {
		if scope != "" && e.Scope != scope {
			continue
		}
		c := Candidate{ChunkID: e.ChunkID, Text: e.Text}
		if score, ok := cosine(query, e.Vector); ok {
			c.Score = &score
		}
		candidates = append(candidates, c)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.Score == nil && b.Score == nil:
		case a.Score == nil:
			return 1
		case b.Score == nil:
			return -1
		default:
			if c := cmp.Compare(*b.Score, *a.Score); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
