package server

import (
	"net/http"

	"github.com/glossa-works/glossa/internal/api"
	"github.com/glossa-works/glossa/internal/api/handlers"
	"github.com/glossa-works/glossa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	SourceHandler      *handlers.SourceHandler
	SegmentHandler     *handlers.SegmentHandler
	TranslateHandler   *handlers.TranslateHandler
	MultiSourceHandler *handlers.MultiSourceHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 10 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sources", func(r chi.Router) {
		r.Post("/", cfg.SourceHandler.Create)
		r.Get("/", cfg.SourceHandler.List)
		r.Get("/meta", cfg.SourceHandler.ListMeta)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.SourceHandler.Get)
			r.Patch("/", cfg.SourceHandler.Update)
			r.Delete("/", cfg.SourceHandler.Delete)

			r.Get("/segments", cfg.SegmentHandler.ListBySource)
			r.Post("/segments", cfg.SegmentHandler.Save)

			r.Post("/translate", cfg.TranslateHandler.TranslateSource)

			r.Post("/multisource/initialize", cfg.MultiSourceHandler.Initialize)
			r.Post("/multisource/translate", cfg.MultiSourceHandler.TranslateBatch)
		})
	})

	r.Route("/segments/{id}", func(r chi.Router) {
		r.Get("/", cfg.SegmentHandler.Get)
		r.Get("/versions", cfg.SegmentHandler.Versions)
		r.Get("/provenance", cfg.SegmentHandler.Provenance)
	})

	r.Post("/translate", cfg.TranslateHandler.TranslateText)

	return r
}
