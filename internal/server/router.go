package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/textloom/textloom/internal/api"
	"github.com/textloom/textloom/internal/api/handlers"
	"github.com/textloom/textloom/internal/api/middleware"
)

type RouterConfig struct {
	// APIKey guards all document and query routes when non-empty. An empty
	// key leaves the API open, which suits single-user local deployments.
	APIKey          string
	DocumentHandler *handlers.DocumentHandler
	QueryHandler    *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads carry whole PDFs; queries are small.
	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(middleware.APIKeyAuth(cfg.APIKey))
		}

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Ingest)
			r.Get("/", cfg.DocumentHandler.List)
		})

		r.Post("/search", cfg.QueryHandler.Search)
		r.Post("/query", cfg.QueryHandler.Answer)
	})

	return r
}
