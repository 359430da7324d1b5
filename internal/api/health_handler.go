package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/stackmesh/commerce-api/internal/api/shared"
)

// Pinger checks connectivity to a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db     *sql.DB
	redis  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. The redis pinger may be nil
// when no Redis is configured.
func NewHealthHandler(db *sql.DB, redis Pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		logger: log.With(slog.String("handler", "health")),
	}
}

// Live handles GET /health/live: the process is up.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, http.StatusOK, "", map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready: the process can serve traffic. Each
// dependency is reported individually; any failure makes the whole
// probe 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database readiness check failed", "error", err)
		deps["database"] = "unreachable"
		healthy = false
	} else {
		deps["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("redis readiness check failed", "error", err)
			deps["redis"] = "unreachable"
			healthy = false
		} else {
			deps["redis"] = "ok"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	shared.RespondWithJSON(w, status, "", map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}
