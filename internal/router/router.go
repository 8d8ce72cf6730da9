package router

import (
	"net/http"

	"order-service/internal/handler"
	"order-service/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	orderHandler *handler.OrderHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler http.Handler,
	observer middleware.HTTPObserver,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware order: Recovery -> CorrelationID -> Logging -> Metrics -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(observer))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check and metrics endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", orderHandler.List)
		r.Post("/checkout", orderHandler.Checkout)
		r.Get("/history/{userEmail}", orderHandler.History)
		r.Get("/{orderId}", orderHandler.GetByID)
		r.Patch("/{orderId}/status", orderHandler.UpdateStatus)
		r.Patch("/{orderId}/payment", orderHandler.RecordPayment)
	})

	return r
}
