package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/http/respond"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns uptime and store reachability.
type HealthHandler struct {
	startedAt time.Time
	store     Pinger
	logger    *zap.Logger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, store Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, store: store, logger: logger}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{
		"status":   "ok",
		"database": "ok",
		"uptime":   time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		body["status"] = "degraded"
		body["database"] = "unreachable"
		respond.JSON(w, http.StatusServiceUnavailable, "degraded", body)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", body)
}
