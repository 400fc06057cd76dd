package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/tasker-api/internal/api/shared"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler answers liveness checks, including a database ping.
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. db may be nil to skip the ping.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "skipped"}
	if h.db == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status, resp.Database = "unavailable", "down"
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = "up"
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
