package schedulers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docsync/core/pkg/jobs"
	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/models/api"
	"github.com/docsync/core/pkg/schedule"
)

// Registry resolves schedulers by key. *jobs.Manager implements it.
type Registry interface {
	Get(key string) (*jobs.Scheduler, error)
	Status(ctx context.Context) ([]jobs.Status, error)
}

type Handler struct {
	registry Registry
	logger   *logger.Logger
}

func NewHandler(registry Registry, logger *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// List handles GET /api/schedulers
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.registry.Status(r.Context())
	if err != nil {
		h.writeError(w, r, "list", err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.Response{
		Success: true,
		Data:    statuses,
		Meta: map[string]any{
			"total": len(statuses),
		},
	})
}

// Get handles GET /api/schedulers/{key}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scheduler(w, r)
	if !ok {
		return
	}

	status, err := s.Status(r.Context())
	if err != nil {
		h.writeError(w, r, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.Response{Success: true, Data: status})
}

// Update handles PUT /api/schedulers/{key}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scheduler(w, r)
	if !ok {
		return
	}

	var req api.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, api.Response{Message: "Invalid request body"})
		return
	}

	_, err := s.UpdateSettings(r.Context(), schedule.Update{
		Enabled:    req.Enabled,
		Frequency:  req.Frequency,
		TimeOfDay:  req.SyncTime,
		Weekdays:   req.Weekdays,
		DayOfMonth: req.DayOfMonth,
		TimeFormat: req.TimeFormat,
	})
	if err != nil {
		h.writeError(w, r, "update_settings", err)
		return
	}

	h.respondStatus(w, r, s, "Scheduler settings updated successfully")
}

// UpdateTimeFormat handles PUT /api/schedulers/{key}/time-format
func (h *Handler) UpdateTimeFormat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scheduler(w, r)
	if !ok {
		return
	}

	var req api.TimeFormatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, api.Response{Message: "Invalid request body"})
		return
	}

	if _, err := s.UpdateTimeFormat(r.Context(), req.TimeFormat); err != nil {
		h.writeError(w, r, "update_time_format", err)
		return
	}

	h.respondStatus(w, r, s, "Time format updated successfully")
}

// Trigger handles POST /api/schedulers/{key}/trigger
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scheduler(w, r)
	if !ok {
		return
	}

	outcome, err := s.TriggerManualSync(r.Context())
	if err != nil {
		h.writeError(w, r, "manual_trigger", err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.Response{
		Success: outcome.Success,
		Data:    outcome,
		Message: outcome.Message,
	})
}

func (h *Handler) scheduler(w http.ResponseWriter, r *http.Request) (*jobs.Scheduler, bool) {
	s, err := h.registry.Get(r.PathValue("key"))
	if err != nil {
		h.writeError(w, r, "lookup", err)
		return nil, false
	}
	return s, true
}

func (h *Handler) respondStatus(w http.ResponseWriter, r *http.Request, s *jobs.Scheduler, message string) {
	status, err := s.Status(r.Context())
	if err != nil {
		h.writeError(w, r, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.Response{Success: true, Data: status, Message: message})
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var verr *schedule.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, api.Response{
			Message: "Invalid scheduler settings",
			Errors:  verr.FieldErrors,
		})
	case errors.Is(err, schedule.ErrInvalidSettings):
		h.writeJSON(w, http.StatusBadRequest, api.Response{Message: err.Error()})
	case errors.Is(err, jobs.ErrSchedulerNotFound):
		h.writeJSON(w, http.StatusNotFound, api.Response{Message: "Scheduler not found"})
	case errors.Is(err, jobs.ErrRunInProgress):
		h.writeJSON(w, http.StatusConflict, api.Response{Message: err.Error()})
	default:
		h.logger.Error().
			Err(err).
			Str("action", operation+"_failed").
			Str("path", r.URL.Path).
			Msg("Scheduler request failed")
		h.writeJSON(w, http.StatusInternalServerError, api.Response{Message: "Internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode scheduler response")
	}
}
