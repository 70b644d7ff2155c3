package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/apperrors"
	"github.com/careerloom/profile-engine/pkg/models"
	"github.com/careerloom/profile-engine/pkg/services"
)

// AddSourceRequest is the body for POST .../profile/sources.
type AddSourceRequest struct {
	SourceID  string                  `json:"source_id"`
	Extracted *models.ExtractedCVInfo `json:"extracted"`
}

// ProfileHandler exposes the consolidation engine over HTTP.
type ProfileHandler struct {
	service services.ConsolidationService
	logger  *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service services.ConsolidationService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

// RegisterRoutes registers the profile routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{uid}/profile", h.GetProfile)
	mux.HandleFunc("POST /api/users/{uid}/profile/sources", h.AddSource)
	mux.HandleFunc("DELETE /api/users/{uid}/profile/sources/{sid}", h.RemoveSource)
	mux.HandleFunc("GET /api/users/{uid}/profile/audit", h.ListAudit)
}

// GetProfile handles GET /api/users/{uid}/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get profile", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, profile); err != nil {
		h.logger.Error("Failed to encode profile response", zap.Error(err))
	}
}

// AddSource handles POST /api/users/{uid}/profile/sources.
func (h *ProfileHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req AddSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.SourceID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "source_id is required")
		return
	}
	if req.Extracted == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "extracted is required")
		return
	}

	profile, err := h.service.AddSource(r.Context(), userID, req.SourceID, req.Extracted)
	if err != nil {
		h.writeServiceError(w, "add source", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, profile); err != nil {
		h.logger.Error("Failed to encode profile response", zap.Error(err))
	}
}

// RemoveSource handles DELETE /api/users/{uid}/profile/sources/{sid}.
func (h *ProfileHandler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	sourceID := r.PathValue("sid")
	if sourceID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "source id is required")
		return
	}

	profile, err := h.service.RemoveSource(r.Context(), userID, sourceID)
	if err != nil {
		h.writeServiceError(w, "remove source", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, profile); err != nil {
		h.logger.Error("Failed to encode profile response", zap.Error(err))
	}
}

// ListAudit handles GET /api/users/{uid}/profile/audit.
func (h *ProfileHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.service.ListAudit(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, "list audit", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"records": records}); err != nil {
		h.logger.Error("Failed to encode audit response", zap.Error(err))
	}
}

func (h *ProfileHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "user id must be a UUID")
		return uuid.Nil, false
	}
	return userID, true
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
func (h *ProfileHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		_ = ErrorResponse(w, http.StatusConflict, "conflict", "profile was modified concurrently, retry the request")
	case errors.Is(err, apperrors.ErrMatcherContract):
		_ = ErrorResponse(w, http.StatusBadGateway, "matcher_contract", "semantic matcher produced an invalid merge")
	case errors.Is(err, apperrors.ErrCollaboratorUnavailable):
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "collaborator_unavailable", "a required collaborator is unavailable, retry later")
	case errors.Is(err, apperrors.ErrSetupIncomplete):
		_ = ErrorResponse(w, http.StatusInternalServerError, "setup_incomplete", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing useful to write.
		h.logger.Debug("request aborted", zap.String("op", op), zap.Error(err))
	default:
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
