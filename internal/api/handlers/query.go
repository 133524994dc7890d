package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragline/internal/api"
	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/go-chi/chi/v5"
)

// MaxTopK bounds how many sources one query may ask for.
const MaxTopK = 50

type QueryService interface {
	Answer(ctx context.Context, in domain.QueryInput) (*domain.QueryResult, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// QueryRequest leaves optional fields nil so defaults can be told apart from zero values.
type QueryRequest struct {
	Q         string   `json:"q"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Dedup     *bool    `json:"dedup,omitempty"`
}

type SourceResponse struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type QueryResponse struct {
	Answer   string           `json:"answer"`
	Sources  []SourceResponse `json:"sources"`
	Warnings []string         `json:"warnings"`
}

func queryResultToResponse(res *domain.QueryResult) *QueryResponse {
	sources := make([]SourceResponse, len(res.Sources))
	for i, s := range res.Sources {
		sources[i] = SourceResponse{ChunkID: s.ChunkID, Text: s.Text, Score: s.Score}
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &QueryResponse{Answer: res.Answer, Sources: sources, Warnings: warnings}
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineID")
	if pipelineID == "" {
		api.Error(w, http.StatusBadRequest, "pipeline id is required")
		return
	}

	var req QueryRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.Q) == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	in := domain.QueryInput{
		Query:     req.Q,
		Scope:     pipelineID,
		TopK:      domain.DefaultTopK,
		Threshold: domain.DefaultThreshold,
		Dedup:     true,
	}
	if req.TopK != nil {
		if *req.TopK <= 0 || *req.TopK > MaxTopK {
			api.Error(w, http.StatusBadRequest, "top_k must be between 1 and 50")
			return
		}
		in.TopK = *req.TopK
	}
	if req.Threshold != nil {
		in.Threshold = *req.Threshold
	}
	if req.Dedup != nil {
		in.Dedup = *req.Dedup
	}

	result, err := h.svc.Answer(r.Context(), in)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, queryResultToResponse(result))
}
