// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/strainwise/convmem/config"
	"github.com/strainwise/convmem/pkg/api/handlers"
	"github.com/strainwise/convmem/pkg/api/middleware"
	"github.com/strainwise/convmem/pkg/logger"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/strainwise/convmem/docs/swagger" // OpenAPI document
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Memory handles the per-user memory endpoints
	Memory *handlers.MemoryHandler

	// Events serves the websocket event streams
	Events *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder

	// MetricsHandler serves /metrics on the API port when set
	MetricsHandler http.Handler

	// RateLimiter throttles per-user routes when set
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	RegisterRoutes(r, cfg, handlers)

	return r
}

// RegisterRoutes registers all API routes. Event streams are long-lived and
// sit outside the request timeout.
func RegisterRoutes(r chi.Router, cfg *config.Config, handlers *Handlers) {
	timeout := middleware.Timeout(cfg.Server.HTTP.RequestTimeout)

	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Use(middleware.RateLimit(handlers.RateLimiter))

		if handlers.Events != nil {
			r.Get("/events", handlers.Events.ServeUser)
		}

		if handlers.Memory != nil {
			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Delete("/", handlers.Memory.Erase)
				r.Post("/conversations", handlers.Memory.RecordConversation)
				r.Patch("/conversations/{entryID}/feedback", handlers.Memory.AmendFeedback)
				r.Post("/sessions", handlers.Memory.StartSession)
				r.Get("/sessions/current", handlers.Memory.CurrentSession)
				r.Get("/context", handlers.Memory.GetContext)
				r.Get("/profile", handlers.Memory.GetProfile)
				r.Get("/settings", handlers.Memory.GetSettings)
				r.Patch("/settings", handlers.Memory.UpdateSettings)
				r.Get("/export", handlers.Memory.Export)
				r.Get("/analytics", handlers.Memory.GetAnalytics)
			})
		}
	})

	if handlers.Events != nil {
		r.Get("/ws/events", handlers.Events.ServeHTTP)
	}

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	if handlers.MetricsHandler != nil {
		r.Handle("/metrics", handlers.MetricsHandler)
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
