package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/models"
	"github.com/careerloom/profile-engine/pkg/validation"
)

// ValidateResponse pairs a validation report with the first section a
// client should send the user to.
type ValidateResponse struct {
	Report                 *models.ValidationReport `json:"report"`
	FirstIncompleteSection string                   `json:"first_incomplete_section"`
}

// ValidationHandler exposes the standalone validation engine. Validation
// here is pure: nothing is read from or written to storage.
type ValidationHandler struct {
	logger *zap.Logger
}

// NewValidationHandler creates a new ValidationHandler.
func NewValidationHandler(logger *zap.Logger) *ValidationHandler {
	return &ValidationHandler{logger: logger}
}

// RegisterRoutes registers the validation route on the given mux.
func (h *ValidationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/validate", h.Validate)
}

// Validate handles POST /api/validate.
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var extracted models.ExtractedCVInfo
	if err := json.NewDecoder(r.Body).Decode(&extracted); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	report := validation.Validate(&extracted)
	response := ValidateResponse{
		Report:                 report,
		FirstIncompleteSection: validation.FirstIncompleteSectionID(report),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode validation response", zap.Error(err))
	}
}
