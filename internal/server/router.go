package server

import (
	"net/http"

	"github.com/cloo-solutions/ragline/internal/api"
	"github.com/cloo-solutions/ragline/internal/api/handlers"
	"github.com/cloo-solutions/ragline/internal/api/middleware"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// APIKey enables bearer auth on every route except /health when set.
	APIKey       string
	RateLimiter  middleware.Allower
	Logger       *logger.Logger
	QueryHandler *handlers.QueryHandler
	FileHandler  *handlers.FileHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(middleware.BearerAuth(cfg.APIKey))
		}

		r.Route("/pipelines/{pipelineID}", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.RateLimiter, pipelineQueryKey, cfg.Logger)).
				Post("/query", cfg.QueryHandler.Query)
			r.Post("/reindex", cfg.FileHandler.Reindex)
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/", cfg.FileHandler.Register)
			r.Get("/{fileID}", cfg.FileHandler.Get)
		})
	})

	return r
}

func pipelineQueryKey(r *http.Request) string {
	return "pipeline-query:" + chi.URLParam(r, "pipelineID") + ":" + middleware.ClientKey(r)
}
