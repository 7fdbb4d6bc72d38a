package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

// MaxEntriesPerDay bounds a single sync payload.
const MaxEntriesPerDay = 500

// FoodLogService manages per-day food logs. A sync replaces the whole day:
// the last writer wins.
type FoodLogService struct {
	repo   repository.FoodLogRepository
	logger *slog.Logger
}

func NewFoodLogService(repo repository.FoodLogRepository, logger *slog.Logger) *FoodLogService {
	return &FoodLogService{repo: repo, logger: logger}
}

// Day returns the entries of one date ordered by position.
func (s *FoodLogService) Day(ctx context.Context, userID, logDate string) (*model.LogDay, error) {
	if err := validateLogDate(logDate); err != nil {
		return nil, err
	}
	return s.listDay(ctx, userID, logDate)
}

// Sync replaces the day with entries and returns the stored result.
// A zero position defaults to the entry's index in the payload.
func (s *FoodLogService) Sync(ctx context.Context, userID, logDate string, entries []model.FoodLogEntry) (*model.LogDay, error) {
	if err := validateLogDate(logDate); err != nil {
		return nil, err
	}
	if len(entries) > MaxEntriesPerDay {
		return nil, apperror.ValidationFailed("entries",
			fmt.Sprintf("at most %d entries per day", MaxEntriesPerDay))
	}

	cleaned := make([]model.FoodLogEntry, len(entries))
	for i, e := range entries {
		e.IngredientName = strings.TrimSpace(e.IngredientName)
		if e.IngredientName == "" {
			return nil, apperror.ValidationFailed(fmt.Sprintf("entries[%d].ingredient_name", i), "ingredient name is required")
		}
		if e.Amount < 0 || e.DisplayAmount < 0 {
			return nil, apperror.ValidationFailed(fmt.Sprintf("entries[%d].amount", i), "amount must not be negative")
		}
		if e.Unit == "" {
			e.Unit = "g"
		}
		if e.Position == 0 {
			e.Position = i
		}
		e.ID = strings.TrimSpace(e.ID)
		cleaned[i] = e
	}

	if err := s.repo.ReplaceDay(ctx, userID, logDate, cleaned); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/foodlog: replacing %s: %w", logDate, err)
	}

	s.logger.Info("food log synced",
		slog.String("userID", userID),
		slog.String("logDate", logDate),
		slog.Int("entries", len(cleaned)),
	)
	return s.listDay(ctx, userID, logDate)
}

// DeleteEntry removes one entry. Returns apperror.ErrNotFound if missing.
func (s *FoodLogService) DeleteEntry(ctx context.Context, userID, logDate, entryID string) error {
	if err := validateLogDate(logDate); err != nil {
		return err
	}
	return s.repo.DeleteEntry(ctx, userID, logDate, entryID)
}

// ClearDay removes every entry of the date. Clearing an empty day is not
// an error.
func (s *FoodLogService) ClearDay(ctx context.Context, userID, logDate string) error {
	if err := validateLogDate(logDate); err != nil {
		return err
	}
	if err := s.repo.ClearDay(ctx, userID, logDate); err != nil {
		return fmt.Errorf("service/foodlog: clearing %s: %w", logDate, err)
	}
	return nil
}

func (s *FoodLogService) listDay(ctx context.Context, userID, logDate string) (*model.LogDay, error) {
	entries, err := s.repo.ListDay(ctx, userID, logDate)
	if err != nil {
		return nil, fmt.Errorf("service/foodlog: listing %s: %w", logDate, err)
	}
	if entries == nil {
		entries = []model.FoodLogEntry{}
	}
	return &model.LogDay{LogDate: logDate, Entries: entries}, nil
}

func validateLogDate(logDate string) error {
	if _, err := time.Parse(model.LogDateLayout, logDate); err != nil {
		return apperror.ValidationFailed("log_date", "date must be YYYY-MM-DD")
	}
	return nil
}
