package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/service"
)

// LogHandler serves /logs. Entries are always scoped to the signed-in user.
type LogHandler struct {
	logs   *service.FoodLogService
	logger *slog.Logger
}

func NewLogHandler(logs *service.FoodLogService, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

type logEntryRequest struct {
	ID             string  `json:"id"`
	IngredientName string  `json:"ingredient_name" validate:"required,max=200"`
	Amount         float64 `json:"amount" validate:"gte=0"`
	DisplayAmount  float64 `json:"display_amount" validate:"gte=0"`
	Unit           string  `json:"unit" validate:"max=20"`
	Position       int     `json:"position" validate:"gte=0"`
}

// syncRequest carries the client's full list for one day.
type syncRequest struct {
	LogDate string            `json:"log_date" validate:"required,datetime=2006-01-02"`
	Entries []logEntryRequest `json:"entries" validate:"dive"`
}

// HandleGetDay returns the entries for one date.
//
// HTTP: GET /logs/{date}
func (h *LogHandler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	day, err := h.logs.Day(r.Context(), userID, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// HandleSync replaces a day with the client's list and returns what was
// stored. Last write wins.
//
// HTTP: POST /logs/sync
func (h *LogHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	entries := make([]model.FoodLogEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = model.FoodLogEntry{
			ID:             e.ID,
			IngredientName: e.IngredientName,
			Amount:         e.Amount,
			DisplayAmount:  e.DisplayAmount,
			Unit:           e.Unit,
			Position:       e.Position,
		}
	}

	day, err := h.logs.Sync(r.Context(), userID, req.LogDate, entries)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// HandleDeleteEntry removes one entry.
//
// HTTP: DELETE /logs/{date}/{entryID}
func (h *LogHandler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	err := h.logs.DeleteEntry(r.Context(), userID, chi.URLParam(r, "date"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearDay removes every entry of a date.
//
// HTTP: DELETE /logs/{date}
func (h *LogHandler) HandleClearDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	if err := h.logs.ClearDay(r.Context(), userID, chi.URLParam(r, "date")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
