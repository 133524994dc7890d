package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// HashProvider is the deterministic offline provider: each text maps to a
// pseudo-random unit vector seeded by a hash of its content.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a HashProvider producing vectors of the given size.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashProvider{dimensions: dimensions}
}

// Embed implements Provider.
func (p *HashProvider) Embed(ctx context.Context, texts []string, model string) (*Response, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors = append(vectors, HashVector(text, p.dimensions))
	}
	return &Response{Vectors: vectors, Dim: p.dimensions, Model: model}, nil
}

// HashVector returns the unit vector for text. Identical text always yields an identical vector.
func HashVector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	raw := make([]float64, dimensions)
	var norm float64
	for i := range raw {
		raw[i] = rng.NormFloat64()
		norm += raw[i] * raw[i]
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, dimensions)
	if norm == 0 {
		return vec
	}
	for i, x := range raw {
		vec[i] = float32(x / norm)
	}
	return vec
}
