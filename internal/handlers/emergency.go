// internal/handlers/emergency.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dineshratn/sos-app-sub001/internal/common/apperrors"
	"github.com/dineshratn/sos-app-sub001/internal/common/logger"
	"github.com/dineshratn/sos-app-sub001/internal/common/validation"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// EmergencyEngine is the engine surface the HTTP layer drives.
type EmergencyEngine interface {
	Trigger(ctx context.Context, req *models.CreateEmergencyRequest) (*models.Emergency, error)
	AutoTrigger(ctx context.Context, deviceToken string, req *models.AutoTriggerRequest) (*models.Emergency, error)
	Cancel(ctx context.Context, emergencyID uuid.UUID, req *models.CancelRequest) (*models.Emergency, error)
	Resolve(ctx context.Context, emergencyID uuid.UUID, req *models.ResolveRequest) (*models.Emergency, error)
	Acknowledge(ctx context.Context, emergencyID uuid.UUID, req *models.AcknowledgeRequest) (*models.Acknowledgment, bool, error)
	Get(ctx context.Context, emergencyID, userID uuid.UUID) (*models.EmergencyResponse, error)
	History(ctx context.Context, filters models.HistoryFilters) (*models.EmergencyListResponse, error)
}

// EmergencyHandler exposes the lifecycle operations over HTTP.
type EmergencyHandler struct {
	engine EmergencyEngine
	logger logger.Logger
}

// NewEmergencyHandler creates an EmergencyHandler.
func NewEmergencyHandler(engine EmergencyEngine, log logger.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

// Trigger handles POST /api/v1/emergency/trigger
func (h *EmergencyHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("unreadable request body"))
		return
	}
	if err := validation.ValidateRequest("trigger", body); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var req models.CreateEmergencyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	emergency, err := h.engine.Trigger(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, models.EmergencyResponse{Emergency: *emergency})
}

// AutoTrigger handles POST /api/v1/emergency/auto-trigger
func (h *EmergencyHandler) AutoTrigger(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Device-Token")
	if token == "" {
		h.writeError(w, apperrors.NewAuthorizationError("missing X-Device-Token header"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("unreadable request body"))
		return
	}
	if err := validation.ValidateRequest("auto-trigger", body); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var req models.AutoTriggerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	emergency, err := h.engine.AutoTrigger(r.Context(), token, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, models.EmergencyResponse{Emergency: *emergency})
}

// Cancel handles PUT /api/v1/emergency/{id}/cancel
func (h *EmergencyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	body, err := readBody(r)
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("unreadable request body"))
		return
	}
	if err := validation.ValidateRequest("cancel", body); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var req models.CancelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	emergency, err := h.engine.Cancel(r.Context(), emergencyID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, models.EmergencyResponse{Emergency: *emergency})
}

// Resolve handles PUT /api/v1/emergency/{id}/resolve
func (h *EmergencyHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	body, err := readBody(r)
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("unreadable request body"))
		return
	}
	if err := validation.ValidateRequest("resolve", body); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var req models.ResolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	emergency, err := h.engine.Resolve(r.Context(), emergencyID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, models.EmergencyResponse{Emergency: *emergency})
}

// Acknowledge handles POST /api/v1/emergency/{id}/acknowledge
func (h *EmergencyHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	body, err := readBody(r)
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("unreadable request body"))
		return
	}
	if err := validation.ValidateRequest("acknowledge", body); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	var req models.AcknowledgeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, apperrors.NewValidationError(err.Error()))
		return
	}

	ack, created, err := h.engine.Acknowledge(r.Context(), emergencyID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, ack)
}

// Get handles GET /api/v1/emergency/{id}
func (h *EmergencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("user_id query parameter is required"))
		return
	}

	resp, err := h.engine.Get(r.Context(), emergencyID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/v1/emergency/history
func (h *EmergencyHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID, err := uuid.Parse(query.Get("user_id"))
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("user_id query parameter is required"))
		return
	}

	filters := models.HistoryFilters{UserID: userID}

	if raw := query.Get("status"); raw != "" {
		status := models.EmergencyStatus(raw)
		filters.Status = &status
	}
	if raw := query.Get("type"); raw != "" {
		emergencyType := models.EmergencyType(raw)
		filters.Type = &emergencyType
	}
	if raw := query.Get("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, apperrors.NewValidationError("start_date must be RFC3339"))
			return
		}
		filters.StartDate = &start
	}
	if raw := query.Get("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, apperrors.NewValidationError("end_date must be RFC3339"))
			return
		}
		filters.EndDate = &end
	}
	if raw := query.Get("page"); raw != "" {
		filters.Page, _ = strconv.Atoi(raw)
	}
	if raw := query.Get("page_size"); raw != "" {
		filters.PageSize, _ = strconv.Atoi(raw)
	}

	resp, err := h.engine.History(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *EmergencyHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("invalid emergency id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *EmergencyHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode response", nil)
	}
}

func (h *EmergencyHandler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewTransientStoreError(err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Request failed", nil)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr}); encodeErr != nil {
		h.logger.WithError(encodeErr).Error("Failed to encode error response", nil)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}
