package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/models/api"
)

// Check probes one dependency, typically the settings store.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	logger  *logger.Logger
	checks  []Check
	timeout time.Duration
}

// NewHandler creates a new health handler
func NewHandler(log *logger.Logger, checks ...Check) *Handler {
	return &Handler{
		logger:  log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	statusCode := http.StatusOK

	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		response.Checks = make(map[string]string, len(h.checks))
		for _, check := range h.checks {
			if err := check.Fn(ctx); err != nil {
				response.Checks[check.Name] = err.Error()
				response.Status = "degraded"
				statusCode = http.StatusServiceUnavailable
				h.logger.Warn().
					Err(err).
					Str("action", "health_check_failed").
					Str("check", check.Name).
					Msg("Dependency check failed")
				continue
			}
			response.Checks[check.Name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "health_check_failed").
			Str("endpoint", "/health").
			Msg("Failed to encode health response")
		return
	}

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Int("status_code", statusCode).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
