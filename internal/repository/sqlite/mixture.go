package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

var _ repository.MixtureRepository = (*MixtureDB)(nil)

// MixtureDB stores mixtures. per100g and ingredients are JSON documents in
// TEXT columns.
type MixtureDB struct {
	conn *sql.DB
}

const mixtureColumns = `id, user_id, name, yield_g, yield_unit, per100g, ingredients, created_at, updated_at`

func scanMixture(row rowScanner) (*model.Mixture, error) {
	var (
		m           model.Mixture
		per100g     string
		ingredients string
	)
	if err := row.Scan(
		&m.ID, &m.UserID, &m.Name, &m.YieldG, &m.YieldUnit,
		&per100g, &ingredients, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(per100g), &m.Per100g); err != nil {
		return nil, fmt.Errorf("decoding per100g of mixture %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(ingredients), &m.Ingredients); err != nil {
		return nil, fmt.Errorf("decoding ingredients of mixture %s: %w", m.ID, err)
	}
	return &m, nil
}

func encodeMixture(m *model.Mixture) (per100g, ingredients []byte, err error) {
	if m.Per100g == nil {
		m.Per100g = map[string]any{}
	}
	if m.Ingredients == nil {
		m.Ingredients = []map[string]any{}
	}
	if per100g, err = json.Marshal(m.Per100g); err != nil {
		return nil, nil, fmt.Errorf("sqlite: encoding per100g: %w", err)
	}
	if ingredients, err = json.Marshal(m.Ingredients); err != nil {
		return nil, nil, fmt.Errorf("sqlite: encoding ingredients: %w", err)
	}
	return per100g, ingredients, nil
}

// List returns the user's mixtures, oldest first.
func (s *MixtureDB) List(ctx context.Context, userID string) ([]model.Mixture, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+mixtureColumns+` FROM mixtures WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing mixtures: %w", err)
	}
	defer rows.Close()

	mixtures := make([]model.Mixture, 0)
	for rows.Next() {
		m, err := scanMixture(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning mixture row: %w", err)
		}
		mixtures = append(mixtures, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating mixtures: %w", err)
	}
	return mixtures, nil
}

// GetByID returns one of the user's mixtures. A mixture owned by another
// user is reported as not found.
func (s *MixtureDB) GetByID(ctx context.Context, userID, id string) (*model.Mixture, error) {
	m, err := scanMixture(s.conn.QueryRowContext(ctx,
		`SELECT `+mixtureColumns+` FROM mixtures WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("mixture", id)
		}
		return nil, fmt.Errorf("sqlite: getting mixture %s: %w", id, err)
	}
	return m, nil
}

// GetByName returns the user's mixture with exactly that name.
func (s *MixtureDB) GetByName(ctx context.Context, userID, name string) (*model.Mixture, error) {
	m, err := scanMixture(s.conn.QueryRowContext(ctx,
		`SELECT `+mixtureColumns+` FROM mixtures WHERE user_id = ? AND name = ?`,
		userID, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("mixture", name)
		}
		return nil, fmt.Errorf("sqlite: getting mixture by name: %w", err)
	}
	return m, nil
}

// Create inserts a new mixture, assigning its ID and timestamps.
func (s *MixtureDB) Create(ctx context.Context, m *model.Mixture) error {
	per100g, ingredients, err := encodeMixture(m)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	m.ID = xid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.YieldUnit == "" {
		m.YieldUnit = "g"
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO mixtures (`+mixtureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Name, m.YieldG, m.YieldUnit,
		string(per100g), string(ingredients), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("mixture", m.Name)
		}
		return fmt.Errorf("sqlite: creating mixture: %w", err)
	}
	return nil
}

// Update rewrites every mutable field of an existing mixture.
func (s *MixtureDB) Update(ctx context.Context, m *model.Mixture) error {
	per100g, ingredients, err := encodeMixture(m)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	if m.YieldUnit == "" {
		m.YieldUnit = "g"
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE mixtures
		 SET name = ?, yield_g = ?, yield_unit = ?, per100g = ?, ingredients = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		m.Name, m.YieldG, m.YieldUnit, string(per100g), string(ingredients), m.UpdatedAt,
		m.ID, m.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("mixture", m.Name)
		}
		return fmt.Errorf("sqlite: updating mixture %s: %w", m.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("mixture", m.ID)
	}
	return nil
}

// Delete removes one of the user's mixtures.
func (s *MixtureDB) Delete(ctx context.Context, userID, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM mixtures WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting mixture %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("mixture", id)
	}
	return nil
}
