package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	version string
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting the given build version.
func NewHealthHandler(version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{version: version, logger: logger}
}

// HealthCheck reports that the process is alive. It deliberately touches no
// downstream dependency; /api/status covers those.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "scantrader",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
