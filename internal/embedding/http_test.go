package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello", "world"}, req.Texts)
		assert.Equal(t, "gte-small", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embedResponse{
			Vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			Dim:     2,
			Model:   "gte-small",
		})
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL+"/", time.Second)
	resp, err := p.Embed(context.Background(), []string{"hello", "world"}, "gte-small")

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Dim)
	assert.Equal(t, "gte-small", resp.Model)
	assert.Equal(t, []float32{0.3, 0.4}, resp.Vectors[1])
}

func TestHTTPProvider_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	_, err := p.Embed(context.Background(), []string{"x"}, "gte-small")

	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPProvider_Embed_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	_, err := p.Embed(context.Background(), []string{"x"}, "gte-small")

	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
}

func TestHTTPProvider_Embed_DeclaredDimMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Vectors: [][]float32{{0.1}}, Dim: 2})
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL, time.Second)
	_, err := p.Embed(context.Background(), []string{"x"}, "gte-small")

	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
}

func TestHTTPProvider_Embed_Unreachable(t *testing.T) {
	p := NewHTTPProvider("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := p.Embed(context.Background(), []string{"x"}, "gte-small")

	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
}
