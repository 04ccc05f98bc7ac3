package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// RegisterRoutes registers GET /health.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Check)
}

// Check pings the database with a short deadline so a stuck pool cannot hang
// the probe.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
