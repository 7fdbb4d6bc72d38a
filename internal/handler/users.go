package handler

import (
	"log/slog"
	"net/http"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/service"
)

// UserHandler serves the signed-in user's own profile.
type UserHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewUserHandler(profiles *service.ProfileService, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, logger: logger}
}

// profileRequest is a partial update: absent fields stay unchanged.
type profileRequest struct {
	DisplayName *string  `json:"display_name"`
	BodyWeight  *float64 `json:"body_weight"`
	WeightUnit  *string  `json:"weight_unit"`
	GoalCal     *int     `json:"goal_cal"`
	GoalProtein *float64 `json:"goal_protein"`
	GoalCarbs   *float64 `json:"goal_carbs"`
	GoalFat     *float64 `json:"goal_fat"`
}

// HandleMe returns the current user.
//
// HTTP: GET /users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe applies a partial profile update.
//
// HTTP: PATCH /users/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("invalid or expired token"))
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.profiles.Update(r.Context(), userID, model.ProfileUpdate{
		DisplayName: req.DisplayName,
		BodyWeight:  req.BodyWeight,
		WeightUnit:  req.WeightUnit,
		GoalCal:     req.GoalCal,
		GoalProtein: req.GoalProtein,
		GoalCarbs:   req.GoalCarbs,
		GoalFat:     req.GoalFat,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
