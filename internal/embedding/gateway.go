// Package embedding turns texts into fixed-dimension vectors through a pluggable provider.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/telemetry"
)

const (
	// DefaultModel is the model name sent when the caller does not pick one.
	DefaultModel = "gte-small"
	// DefaultDimensions is the output size of DefaultModel.
	DefaultDimensions = 384
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second
)

// Response is what a provider returns for one batch.
type Response struct {
	Vectors [][]float32
	Dim     int
	Model   string
}

// Provider is the embedding capability injected into the Gateway at startup.
type Provider interface {
	Embed(ctx context.Context, texts []string, model string) (*Response, error)
}

// Config configures a Gateway.
type Config struct {
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// Gateway validates provider output and applies timeouts. It holds no mutable state.
type Gateway struct {
	provider   Provider
	model      string
	dimensions int
	timeout    time.Duration
}

// NewGateway creates a Gateway around provider.
func NewGateway(provider Provider, cfg Config) *Gateway {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gateway{
		provider:   provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}
}

// Model returns the default model identifier.
func (g *Gateway) Model() string {
	return g.model
}

// Embed returns one vector per text, in input order. Empty input returns an empty
// result without calling the provider.
//
// A provider may return fewer vectors than texts; callers that index chunks must
// check the count themselves. Zero vectors for non-empty input is an error.
func (g *Gateway) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if model == "" {
		model = g.model
	}

	ctx, span := telemetry.StartSpan(ctx, "embedding.Embed", telemetry.SpanAttributes{
		Model:     model,
		Operation: "embed",
	})
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Embed(ctx, texts, model)
	if err != nil {
		span.SetError(err)
		if domain.IsEmbeddingError(err) {
			return nil, err
		}
		return nil, domain.NewEmbeddingError("embedding provider failed", err)
	}

	if err := g.validate(resp, len(texts)); err != nil {
		span.SetError(err)
		return nil, err
	}

	return resp.Vectors, nil
}

// EmbedQuery embeds a single query text.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text}, "")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gateway) validate(resp *Response, inputs int) error {
	if resp == nil || len(resp.Vectors) == 0 {
		return domain.NewEmbeddingError("embedding provider returned no vectors", nil)
	}
	if len(resp.Vectors) > inputs {
		return domain.NewEmbeddingError(
			fmt.Sprintf("embedding provider returned %d vectors for %d texts", len(resp.Vectors), inputs), nil)
	}
	for i, v := range resp.Vectors {
		if len(v) == 0 {
			return domain.NewEmbeddingError(fmt.Sprintf("embedding %d is empty", i), nil)
		}
		if g.dimensions > 0 && len(v) != g.dimensions {
			return domain.NewEmbeddingError(
				fmt.Sprintf("embedding %d has %d dimensions, expected %d", i, len(v), g.dimensions), nil)
		}
	}
	return nil
}
