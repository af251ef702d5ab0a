package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/dukerupert/fridgetracker/internal/inventory"
)

type HealthHandler struct {
	db     *sql.DB
	inv    *inventory.Store
	engine Syncer
}

func NewHealthHandler(db *sql.DB, inv *inventory.Store, engine Syncer) *HealthHandler {
	return &HealthHandler{db: db, inv: inv, engine: engine}
}

// Health handles GET /health. The remote being unreachable does not make the
// app unhealthy; the local database does.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]any{
		"status": "ok",
		"items":  h.inv.Len(),
	}
	if h.engine != nil {
		resp["sync"] = h.engine.Status().State
	}
	if err := h.db.PingContext(ctx); err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
