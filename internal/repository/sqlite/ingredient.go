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

var _ repository.IngredientRepository = (*IngredientDB)(nil)

// IngredientDB stores custom ingredients.
type IngredientDB struct {
	conn *sql.DB
}

func scanIngredient(row rowScanner) (*model.CustomIngredient, error) {
	var (
		ing       model.CustomIngredient
		nutrition string
	)
	if err := row.Scan(&ing.ID, &ing.UserID, &ing.Name, &nutrition, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nutrition), &ing.Nutrition); err != nil {
		return nil, fmt.Errorf("decoding nutrition of ingredient %s: %w", ing.ID, err)
	}
	return &ing, nil
}

func encodeNutrition(ing *model.CustomIngredient) (string, error) {
	if ing.Nutrition == nil {
		ing.Nutrition = map[string]any{}
	}
	b, err := json.Marshal(ing.Nutrition)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding nutrition: %w", err)
	}
	return string(b), nil
}

// List returns the user's ingredients ordered by name.
func (s *IngredientDB) List(ctx context.Context, userID string) ([]model.CustomIngredient, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, name, nutrition, created_at, updated_at
		 FROM custom_ingredients WHERE user_id = ? ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := make([]model.CustomIngredient, 0)
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient row: %w", err)
		}
		ingredients = append(ingredients, *ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *IngredientDB) GetByName(ctx context.Context, userID, name string) (*model.CustomIngredient, error) {
	ing, err := scanIngredient(s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, nutrition, created_at, updated_at
		 FROM custom_ingredients WHERE user_id = ? AND name = ?`,
		userID, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ingredient", name)
		}
		return nil, fmt.Errorf("sqlite: getting ingredient by name: %w", err)
	}
	return ing, nil
}

func (s *IngredientDB) Create(ctx context.Context, ing *model.CustomIngredient) error {
	nutrition, err := encodeNutrition(ing)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ing.ID = xid.New().String()
	ing.CreatedAt = now
	ing.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO custom_ingredients (id, user_id, name, nutrition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ing.ID, ing.UserID, ing.Name, nutrition, ing.CreatedAt, ing.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("ingredient", ing.Name)
		}
		return fmt.Errorf("sqlite: creating ingredient: %w", err)
	}
	return nil
}

// Update replaces the nutrition document of an existing ingredient.
func (s *IngredientDB) Update(ctx context.Context, ing *model.CustomIngredient) error {
	nutrition, err := encodeNutrition(ing)
	if err != nil {
		return err
	}
	ing.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE custom_ingredients SET name = ?, nutrition = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		ing.Name, nutrition, ing.UpdatedAt, ing.ID, ing.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("ingredient", ing.Name)
		}
		return fmt.Errorf("sqlite: updating ingredient %s: %w", ing.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("ingredient", ing.ID)
	}
	return nil
}

func (s *IngredientDB) Delete(ctx context.Context, userID, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM custom_ingredients WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting ingredient %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("ingredient", id)
	}
	return nil
}
