package handler

import (
	"net/http"
	"time"

	"github.com/notehub-dev/notehub/internal/core/domain"
	"github.com/notehub-dev/notehub/internal/telemetry/logger"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logger.L(r.Context()).Warn("readiness check failed", "error", err)
			h.writeJSON(w, r, http.StatusServiceUnavailable, ErrorResponse{
				Code:      domain.ErrInternalServer.Code,
				Kind:      "NotReady",
				Error:     "not ready",
				Details:   err.Error(),
				RequestID: logger.RequestIDFromContext(r.Context()),
				Timestamp: time.Now().UnixMilli(),
			})
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
