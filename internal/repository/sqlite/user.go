package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores accounts in the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, email, display_name, password_hash, provider, provider_id,
	body_weight, weight_unit, goal_cal, goal_protein, goal_carbs, goal_fat,
	created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u            model.User
		email        sql.NullString
		passwordHash sql.NullString
		providerID   sql.NullString
		provider     string
	)
	err := row.Scan(
		&u.ID,
		&email,
		&u.DisplayName,
		&passwordHash,
		&provider,
		&providerID,
		&u.BodyWeight,
		&u.WeightUnit,
		&u.GoalCal,
		&u.GoalProtein,
		&u.GoalCarbs,
		&u.GoalFat,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.PasswordHash = passwordHash.String
	u.ProviderID = providerID.String
	u.Provider = model.Provider(provider)
	return &u, nil
}

// Create inserts a new user. ID and timestamps are assigned here; a missing
// provider defaults to "email" and a missing weight unit to "kg".
func (s *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Provider == "" {
		user.Provider = model.ProviderEmail
	}
	if user.WeightUnit == "" {
		user.WeightUnit = model.WeightUnitKg
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(user.Email),
		user.DisplayName,
		nullString(user.PasswordHash),
		string(user.Provider),
		nullString(user.ProviderID),
		user.BodyWeight,
		user.WeightUnit,
		user.GoalCal,
		user.GoalProtein,
		user.GoalCarbs,
		user.GoalFat,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AccountConflict(err.Error())
		}
		return fmt.Errorf("sqlite: inserting user (provider=%s): %w", user.Provider, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a user by exact email, whatever their provider.
func (s *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", "email")
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetByProviderID retrieves the user linked to an external identity.
func (s *UserDB) GetByProviderID(ctx context.Context, provider model.Provider, providerID string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_id = ?`,
		string(provider), providerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", string(provider)+":"+providerID)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s identity: %w", provider, err)
	}
	return u, nil
}

// LinkProvider rewrites the provider identity of an existing account.
func (s *UserDB) LinkProvider(ctx context.Context, userID string, provider model.Provider, providerID string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE users SET provider = ?, provider_id = ?, updated_at = ? WHERE id = ?`,
		string(provider), nullString(providerID), time.Now().UTC(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AccountConflict(err.Error())
		}
		return fmt.Errorf("sqlite: linking user %s to %s: %w", userID, provider, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// UpdateProfile writes the profile and goal fields of user.
func (s *UserDB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE users
		 SET display_name = ?, body_weight = ?, weight_unit = ?,
		     goal_cal = ?, goal_protein = ?, goal_carbs = ?, goal_fat = ?,
		     updated_at = ?
		 WHERE id = ?`,
		user.DisplayName,
		user.BodyWeight,
		user.WeightUnit,
		user.GoalCal,
		user.GoalProtein,
		user.GoalCarbs,
		user.GoalFat,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}
