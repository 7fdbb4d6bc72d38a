package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/service"
)

// IngredientHandler serves /ingredients.
type IngredientHandler struct {
	ingredients *service.IngredientService
	logger      *slog.Logger
}

func NewIngredientHandler(ingredients *service.IngredientService, logger *slog.Logger) *IngredientHandler {
	return &IngredientHandler{ingredients: ingredients, logger: logger}
}

type ingredientRequest struct {
	Name      string         `json:"name" validate:"required,max=100"`
	Nutrition map[string]any `json:"nutrition" validate:"required"`
}

// HTTP: GET /ingredients
func (h *IngredientHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	items, err := h.ingredients.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: POST /ingredients (upsert by name)
func (h *IngredientHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	var req ingredientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, _, err := h.ingredients.Save(r.Context(), userID, req.Name, req.Nutrition)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HTTP: DELETE /ingredients/{id}
func (h *IngredientHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	if err := h.ingredients.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
