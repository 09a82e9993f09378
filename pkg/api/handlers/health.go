// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/strainwise/convmem/pkg/api/response"
	"github.com/strainwise/convmem/pkg/version"
)

// readinessTimeout bounds the dependency pings behind /ready.
const readinessTimeout = 2 * time.Second

// Readiness is the view of the memory hub the probes need.
type Readiness interface {
	Started() bool
	Ready(ctx context.Context) error
	ActiveSessions() int
}

// ConnectionCounter reports open event stream connections.
type ConnectionCounter interface {
	Connections() int
}

// Status is the body of the /status endpoint.
type Status struct {
	Status         string            `json:"status"`
	Ready          bool              `json:"ready"`
	Reason         string            `json:"reason,omitempty"`
	Uptime         string            `json:"uptime"`
	ActiveSessions int               `json:"active_sessions"`
	Connections    int               `json:"ws_connections"`
	Build          map[string]string `json:"build"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	hub     Readiness
	streams ConnectionCounter
	started time.Time
}

// NewHealthHandler creates a new health handler. streams may be nil.
func NewHealthHandler(hub Readiness, streams ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		hub:     hub,
		streams: streams,
		started: time.Now(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.hub.Started() {
		response.JSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
	}
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.hub.Ready(ctx); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":  false,
			"reason": err.Error(),
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := Status{
		Status:         "ok",
		Ready:          true,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		ActiveSessions: h.hub.ActiveSessions(),
		Build:          version.Info(),
	}
	if !h.hub.Started() {
		status.Status = "unhealthy"
	}
	if err := h.hub.Ready(ctx); err != nil {
		status.Ready = false
		status.Reason = err.Error()
	}
	if h.streams != nil {
		status.Connections = h.streams.Connections()
	}
	response.JSON(w, http.StatusOK, status)
}
