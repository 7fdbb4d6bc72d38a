package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

const MaxIngredientNameLength = 100

// IngredientService manages user-defined ingredients.
type IngredientService struct {
	repo   repository.IngredientRepository
	logger *slog.Logger
}

func NewIngredientService(repo repository.IngredientRepository, logger *slog.Logger) *IngredientService {
	return &IngredientService{repo: repo, logger: logger}
}

func (s *IngredientService) List(ctx context.Context, userID string) ([]model.CustomIngredient, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/ingredient: listing: %w", err)
	}
	if items == nil {
		items = []model.CustomIngredient{}
	}
	return items, nil
}

// Save creates the ingredient or replaces the nutrition of the one with
// the same name.
func (s *IngredientService) Save(ctx context.Context, userID, name string, nutrition map[string]any) (*model.CustomIngredient, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, apperror.ValidationFailed("name", "ingredient name is required")
	}
	if len(name) > MaxIngredientNameLength {
		return nil, false, apperror.ValidationFailed("name",
			fmt.Sprintf("ingredient name must be %d characters or less", MaxIngredientNameLength))
	}
	if nutrition == nil {
		nutrition = map[string]any{}
	}

	existing, err := s.repo.GetByName(ctx, userID, name)
	switch {
	case err == nil:
		existing.Nutrition = nutrition
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("service/ingredient: updating %q: %w", name, err)
		}
		return existing, false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/ingredient: looking up %q: %w", name, err)
	}

	item := &model.CustomIngredient{UserID: userID, Name: name, Nutrition: nutrition}
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("service/ingredient: creating %q: %w", name, err)
	}
	s.logger.Info("ingredient created", slog.String("id", item.ID))
	return item, true, nil
}

// Delete removes an ingredient. Returns apperror.ErrNotFound if missing.
func (s *IngredientService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
