package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/ragline/internal/api"
	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/service"
	"github.com/go-chi/chi/v5"
)

type FileService interface {
	RegisterFile(ctx context.Context, in service.RegisterFileInput) (*domain.File, error)
	GetFile(ctx context.Context, fileID string) (*domain.File, error)
	ReindexPipeline(ctx context.Context, pipelineID string) ([]*domain.IndexJob, error)
}

type FileHandler struct {
	svc FileService
}

func NewFileHandler(svc FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

type RegisterFileRequest struct {
	Bucket     string `json:"bucket"`
	ObjectKey  string `json:"object_key"`
	Name       string `json:"name"`
	PipelineID string `json:"pipeline_id"`
}

type FileResponse struct {
	FileID     string `json:"file_id"`
	PipelineID string `json:"pipeline_id,omitempty"`
	Name       string `json:"name"`
	Bucket     string `json:"bucket"`
	ObjectKey  string `json:"object_key"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func fileToResponse(f *domain.File) *FileResponse {
	return &FileResponse{
		FileID:     f.ID,
		PipelineID: f.PipelineID,
		Name:       f.Name,
		Bucket:     f.Bucket,
		ObjectKey:  f.ObjectKey,
		Status:     string(f.Status),
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  f.UpdatedAt.Format(time.RFC3339),
	}
}

type ReindexResponse struct {
	PipelineID string   `json:"pipeline_id"`
	Queued     int      `json:"queued"`
	JobIDs     []string `json:"job_ids"`
}

func (h *FileHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterFileRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	if req.Bucket == "" {
		api.Error(w, http.StatusBadRequest, "bucket is required")
		return
	}
	if req.ObjectKey == "" {
		api.Error(w, http.StatusBadRequest, "object_key is required")
		return
	}

	file, err := h.svc.RegisterFile(r.Context(), service.RegisterFileInput{
		PipelineID: req.PipelineID,
		Name:       req.Name,
		Bucket:     req.Bucket,
		ObjectKey:  req.ObjectKey,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusAccepted, fileToResponse(file))
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		api.Error(w, http.StatusBadRequest, "file id is required")
		return
	}

	file, err := h.svc.GetFile(r.Context(), fileID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, fileToResponse(file))
}

func (h *FileHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineID")
	if pipelineID == "" {
		api.Error(w, http.StatusBadRequest, "pipeline id is required")
		return
	}

	jobs, err := h.svc.ReindexPipeline(r.Context(), pipelineID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	api.Success(w, http.StatusAccepted, &ReindexResponse{PipelineID: pipelineID, Queued: len(jobs), JobIDs: ids})
}
