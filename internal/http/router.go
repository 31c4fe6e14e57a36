package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"media-transcription-proxy/internal/app"
	"media-transcription-proxy/internal/observability"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestMetrics(application.Metrics))

	// Health endpoints
	r.Get("/healthz", observability.HealthHandler)
	r.Get("/readyz", observability.ReadyHandler(application.Ready))

	application.Handler.Register(r)

	return r
}
