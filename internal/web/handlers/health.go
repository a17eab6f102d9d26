package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all dependency checks of one health request.
const healthCheckTimeout = 5 * time.Second

// HealthCheck probes one dependency and returns nil when it is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the state of the server and its dependencies.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a health handler running checks, keyed by component name.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// Health runs every check. Any failing component turns the response into a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Components = make(map[string]string, len(h.checks))
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "component", name, "error", err)
			resp.Components[name] = "error: " + err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	respondJSON(w, status, resp)
}
