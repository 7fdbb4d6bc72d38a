// Package repository declares the storage contracts used by the service
// layer. Implementations live in subpackages (repository/sqlite); services
// depend only on these interfaces so tests can swap in fakes.
//
// Uniqueness is enforced by the store, not by services: a violated
// constraint surfaces as an apperror wrapping apperror.ErrConflict.
package repository

import (
	"context"
	"time"

	"github.com/jborcher/vegfuel/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts a new user, assigning ID and timestamps.
	// Returns apperror.ErrConflict when email or (provider, provider_id)
	// is already taken.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByProviderID(ctx context.Context, provider model.Provider, providerID string) (*model.User, error)
	// LinkProvider points an existing account at a new provider identity.
	LinkProvider(ctx context.Context, userID string, provider model.Provider, providerID string) error
	UpdateProfile(ctx context.Context, user *model.User) error
}

// ResetTokenRepository persists password reset tokens.
type ResetTokenRepository interface {
	// Replace deletes every token for token.Email and inserts token, in a
	// single transaction.
	Replace(ctx context.Context, token *model.PasswordResetToken) error
	Get(ctx context.Context, token string) (*model.PasswordResetToken, error)
	// Consume marks the token used and sets the password hash of the
	// password-bearing account for its email, atomically. Returns
	// apperror.ErrInvalidResetToken if the token was already used or is
	// expired at now.
	Consume(ctx context.Context, token string, passwordHash string, now time.Time) error
}

// FoodLogRepository persists per-day food log entries.
type FoodLogRepository interface {
	ListDay(ctx context.Context, userID, logDate string) ([]model.FoodLogEntry, error)
	// ReplaceDay swaps the whole day for entries in one transaction.
	ReplaceDay(ctx context.Context, userID, logDate string, entries []model.FoodLogEntry) error
	DeleteEntry(ctx context.Context, userID, logDate, entryID string) error
	ClearDay(ctx context.Context, userID, logDate string) error
}

// MixtureRepository persists mixtures, unique per (user, name).
type MixtureRepository interface {
	List(ctx context.Context, userID string) ([]model.Mixture, error)
	GetByID(ctx context.Context, userID, id string) (*model.Mixture, error)
	GetByName(ctx context.Context, userID, name string) (*model.Mixture, error)
	Create(ctx context.Context, mixture *model.Mixture) error
	Update(ctx context.Context, mixture *model.Mixture) error
	Delete(ctx context.Context, userID, id string) error
}

// IngredientRepository persists custom ingredients, unique per (user, name).
type IngredientRepository interface {
	List(ctx context.Context, userID string) ([]model.CustomIngredient, error)
	GetByName(ctx context.Context, userID, name string) (*model.CustomIngredient, error)
	Create(ctx context.Context, ingredient *model.CustomIngredient) error
	Update(ctx context.Context, ingredient *model.CustomIngredient) error
	Delete(ctx context.Context, userID, id string) error
}
