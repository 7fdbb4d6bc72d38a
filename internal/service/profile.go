package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

const MaxDisplayNameLength = 100

// ProfileService reads and edits the signed-in user's profile and goals.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// Get returns the account by ID.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Update applies a partial update. Fields left nil are unchanged.
func (s *ProfileService) Update(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	if err := validateProfile(&upd); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd.Apply(user)
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("service/profile: updating user %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}

func validateProfile(upd *model.ProfileUpdate) error {
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return apperror.ValidationFailed("display_name", "display name cannot be empty")
		}
		if len(name) > MaxDisplayNameLength {
			return apperror.ValidationFailed("display_name",
				fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
		}
		upd.DisplayName = &name
	}
	if upd.WeightUnit != nil && *upd.WeightUnit != model.WeightUnitKg && *upd.WeightUnit != model.WeightUnitLbs {
		return apperror.ValidationFailed("weight_unit", "weight unit must be kg or lbs")
	}
	if upd.BodyWeight != nil && *upd.BodyWeight <= 0 {
		return apperror.ValidationFailed("body_weight", "body weight must be positive")
	}
	if upd.GoalCal != nil && *upd.GoalCal < 0 {
		return apperror.ValidationFailed("goal_cal", "goal must not be negative")
	}
	for field, v := range map[string]*float64{
		"goal_protein": upd.GoalProtein,
		"goal_carbs":   upd.GoalCarbs,
		"goal_fat":     upd.GoalFat,
	} {
		if v != nil && *v < 0 {
			return apperror.ValidationFailed(field, "goal must not be negative")
		}
	}
	return nil
}
