package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable. *sqlite.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	db     Pinger
	env    string
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, env string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, env: env, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
	Env    string `json:"env"`
}

// HandleHealth answers 200 {"status":"ok"} while the database responds.
//
// HTTP: GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Env: h.env})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Env: h.env})
}
