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

const (
	MaxMixtureNameLength = 100
	defaultYieldUnit     = "g"
)

// MixtureInput is the client-supplied part of a mixture.
type MixtureInput struct {
	Name        string
	YieldG      float64
	YieldUnit   string
	Per100g     map[string]any
	Ingredients []map[string]any
}

// MixtureService manages saved recipes. Names are unique per user.
type MixtureService struct {
	repo   repository.MixtureRepository
	logger *slog.Logger
}

func NewMixtureService(repo repository.MixtureRepository, logger *slog.Logger) *MixtureService {
	return &MixtureService{repo: repo, logger: logger}
}

// List returns the user's mixtures, oldest first.
func (s *MixtureService) List(ctx context.Context, userID string) ([]model.Mixture, error) {
	mixtures, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/mixture: listing: %w", err)
	}
	if mixtures == nil {
		mixtures = []model.Mixture{}
	}
	return mixtures, nil
}

// Save creates a mixture, or overwrites the one with the same name.
// created reports which happened.
func (s *MixtureService) Save(ctx context.Context, userID string, in MixtureInput) (mixture *model.Mixture, created bool, err error) {
	if err := normalizeMixture(&in); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetByName(ctx, userID, in.Name)
	switch {
	case err == nil:
		applyMixture(existing, in)
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("service/mixture: updating %q: %w", in.Name, err)
		}
		s.logger.Info("mixture updated", slog.String("id", existing.ID))
		return existing, false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/mixture: looking up %q: %w", in.Name, err)
	}

	mixture = &model.Mixture{UserID: userID}
	applyMixture(mixture, in)
	if err := s.repo.Create(ctx, mixture); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("service/mixture: creating %q: %w", in.Name, err)
	}
	s.logger.Info("mixture created", slog.String("id", mixture.ID))
	return mixture, true, nil
}

// Update overwrites a mixture by ID. Renaming onto another mixture's name
// is a conflict.
func (s *MixtureService) Update(ctx context.Context, userID, id string, in MixtureInput) (*model.Mixture, error) {
	if err := normalizeMixture(&in); err != nil {
		return nil, err
	}

	mixture, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	applyMixture(mixture, in)
	if err := s.repo.Update(ctx, mixture); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/mixture: updating %s: %w", id, err)
	}
	s.logger.Info("mixture updated", slog.String("id", id))
	return mixture, nil
}

// Delete removes a mixture. Returns apperror.ErrNotFound if missing.
func (s *MixtureService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("mixture deleted", slog.String("id", id))
	return nil
}

func normalizeMixture(in *MixtureInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperror.ValidationFailed("name", "mixture name is required")
	}
	if len(in.Name) > MaxMixtureNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("mixture name must be %d characters or less", MaxMixtureNameLength))
	}
	if in.YieldG <= 0 {
		return apperror.ValidationFailed("yield_g", "yield must be positive")
	}
	if in.YieldUnit = strings.TrimSpace(in.YieldUnit); in.YieldUnit == "" {
		in.YieldUnit = defaultYieldUnit
	}
	if in.Per100g == nil {
		in.Per100g = map[string]any{}
	}
	if in.Ingredients == nil {
		in.Ingredients = []map[string]any{}
	}
	return nil
}

func applyMixture(m *model.Mixture, in MixtureInput) {
	m.Name = in.Name
	m.YieldG = in.YieldG
	m.YieldUnit = in.YieldUnit
	m.Per100g = in.Per100g
	m.Ingredients = in.Ingredients
}
