package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
)

// HTTPProvider calls an embedding service exposing POST {endpoint}/embed.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Dim     int         `json:"dim"`
	Model   string      `json:"model"`
}

// NewHTTPProvider creates a provider for the embedding service at endpoint.
func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed implements Provider.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string, model string) (*Response, error) {
	if len(texts) == 0 {
		return &Response{Model: model}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Model: model})
	if err != nil {
		return nil, domain.NewEmbeddingError("failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewEmbeddingError("failed to create embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewEmbeddingError("embedding service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.NewEmbeddingError(
			fmt.Sprintf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.NewEmbeddingError("malformed embedding response", err)
	}

	if decoded.Dim > 0 {
		for i, v := range decoded.Vectors {
			if len(v) != decoded.Dim {
				return nil, domain.NewEmbeddingError(
					fmt.Sprintf("embedding %d has %d dimensions, response declares %d", i, len(v), decoded.Dim), nil)
			}
		}
	}

	return &Response{
		Vectors: decoded.Vectors,
		Dim:     decoded.Dim,
		Model:   decoded.Model,
	}, nil
}
