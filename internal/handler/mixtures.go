package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/service"
)

// MixtureHandler serves /mixtures.
type MixtureHandler struct {
	mixtures *service.MixtureService
	logger   *slog.Logger
}

func NewMixtureHandler(mixtures *service.MixtureService, logger *slog.Logger) *MixtureHandler {
	return &MixtureHandler{mixtures: mixtures, logger: logger}
}

type mixtureRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	YieldG      float64          `json:"yield_g" validate:"gt=0"`
	YieldUnit   string           `json:"yield_unit" validate:"max=20"`
	Per100g     map[string]any   `json:"per100g" validate:"required"`
	Ingredients []map[string]any `json:"ingredients" validate:"required"`
}

func (req mixtureRequest) input() service.MixtureInput {
	return service.MixtureInput{
		Name:        req.Name,
		YieldG:      req.YieldG,
		YieldUnit:   req.YieldUnit,
		Per100g:     req.Per100g,
		Ingredients: req.Ingredients,
	}
}

// HandleList returns the user's mixtures, oldest first.
//
// HTTP: GET /mixtures
func (h *MixtureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	mixtures, err := h.mixtures.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mixtures)
}

// HandleSave creates a mixture, or overwrites the one with the same name.
// Both cases answer 201 with the stored mixture.
//
// HTTP: POST /mixtures
func (h *MixtureHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	var req mixtureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	mixture, _, err := h.mixtures.Save(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, mixture)
}

// HandleUpdate overwrites a mixture by ID.
//
// HTTP: PUT /mixtures/{id}
func (h *MixtureHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	var req mixtureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	mixture, err := h.mixtures.Update(r.Context(), userID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mixture)
}

// HandleDelete removes a mixture.
//
// HTTP: DELETE /mixtures/{id}
func (h *MixtureHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	if err := h.mixtures.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
