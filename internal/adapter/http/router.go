package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plastinin/docgateway/internal/adapter/auth"
	"github.com/plastinin/docgateway/internal/adapter/http/handler"
	httpmiddleware "github.com/plastinin/docgateway/internal/adapter/http/middleware"
	"go.uber.org/zap"
)

// Handlers обработчики, которые монтирует роутер.
// Extraction может быть nil, тогда /api/v1 не регистрируется.
type Handlers struct {
	Health     *handler.HealthHandler
	Upload     *handler.UploadHandler
	Download   *handler.DownloadHandler
	Extraction *handler.ExtractionHandler
	// Async включает POST /api/v1/extractions
	Async bool
}

// NewRouter создаёт и настраивает HTTP роутер
func NewRouter(
	h Handlers,
	authenticator auth.Authenticator,
	staticDir string,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Health check (вне аутентификации)
	r.Get("/health", h.Health.Check)

	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.NewAuthMiddleware(authenticator, logger))

		r.Post("/upload", h.Upload.Upload)
		r.Post("/scrape", h.Upload.Upload)
		r.Get("/download", h.Download.Download)
		r.Get("/download/excel", h.Download.Download)

		if h.Extraction == nil {
			return
		}

		// API v1
		r.Route("/api/v1/extractions", func(r chi.Router) {
			r.Use(middleware.Compress(5, "application/json"))

			if h.Async {
				r.Post("/", h.Extraction.Create)
			}
			r.Get("/", h.Extraction.List)
			r.Get("/{id}", h.Extraction.GetByID)
			r.Delete("/{id}", h.Extraction.Delete)
			r.Get("/{id}/preview", h.Extraction.Preview)
		})
	})

	// Статика клиента
	if staticDir != "" {
		r.Get("/*", http.FileServer(http.Dir(staticDir)).ServeHTTP)
	}

	return r
}
