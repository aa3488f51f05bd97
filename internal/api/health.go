package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/pidtune/internal/store"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     store.Repository
	sessions *tuning.Registry
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. A zero timeout uses five
// seconds.
func NewHealthHandler(repo store.Repository, sessions *tuning.Registry, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	return &HealthHandler{repo: repo, sessions: sessions, timeout: timeout}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Sessions int               `json:"sessions"`
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{
		Status: "healthy",
		Checks: map[string]string{"api": "ok", "database": "ok"},
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		resp.Status = "degraded"
		resp.Checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, resp)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
