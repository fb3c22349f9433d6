package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/respond"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler responds with service health information.
type HealthHandler struct {
	Checks map[string]HealthCheck
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]string{"status": "ok"}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			logging.FromContext(ctx).Warn("health check failed", slog.String("check", name), slog.Any("error", err))
			payload[name] = "unavailable"
			payload["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		payload[name] = "ok"
	}

	respond.JSON(r.Context(), w, status, payload)
}
