package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

var _ repository.FoodLogRepository = (*FoodLogDB)(nil)

// FoodLogDB stores food log entries, keyed by (user_id, log_date).
type FoodLogDB struct {
	conn *sql.DB
}

// ListDay returns the entries of one day ordered by position.
func (s *FoodLogDB) ListDay(ctx context.Context, userID, logDate string) ([]model.FoodLogEntry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, log_date, ingredient_name, amount, display_amount, unit, position, synced_at
		 FROM food_logs
		 WHERE user_id = ? AND log_date = ?
		 ORDER BY position, synced_at`,
		userID, logDate,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing food log %s: %w", logDate, err)
	}
	defer rows.Close()

	entries := make([]model.FoodLogEntry, 0)
	for rows.Next() {
		var e model.FoodLogEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.LogDate, &e.IngredientName,
			&e.Amount, &e.DisplayAmount, &e.Unit, &e.Position, &e.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning food log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating food log: %w", err)
	}
	return entries, nil
}

// ReplaceDay deletes the day and inserts entries in one transaction. Missing
// IDs and the sync timestamp are assigned here and written back into entries.
func (s *FoodLogDB) ReplaceDay(ctx context.Context, userID, logDate string, entries []model.FoodLogEntry) error {
	now := time.Now().UTC()

	return withTx(ctx, s.conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM food_logs WHERE user_id = ? AND log_date = ?`,
			userID, logDate,
		); err != nil {
			return fmt.Errorf("sqlite: clearing food log %s: %w", logDate, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO food_logs
			 (id, user_id, log_date, ingredient_name, amount, display_amount, unit, position, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("sqlite: preparing food log insert: %w", err)
		}
		defer stmt.Close()

		for i := range entries {
			e := &entries[i]
			if e.ID == "" {
				e.ID = xid.New().String()
			}
			e.UserID = userID
			e.LogDate = logDate
			e.SyncedAt = now
			if _, err := stmt.ExecContext(ctx,
				e.ID, e.UserID, e.LogDate, e.IngredientName,
				e.Amount, e.DisplayAmount, e.Unit, e.Position, e.SyncedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return apperror.Conflict("log entry", e.ID)
				}
				return fmt.Errorf("sqlite: inserting food log entry: %w", err)
			}
		}
		return nil
	})
}

// DeleteEntry removes a single entry. Returns apperror.ErrNotFound when the
// entry does not exist on that day for that user.
func (s *FoodLogDB) DeleteEntry(ctx context.Context, userID, logDate, entryID string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM food_logs WHERE id = ? AND user_id = ? AND log_date = ?`,
		entryID, userID, logDate,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting food log entry %s: %w", entryID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("log entry", entryID)
	}
	return nil
}

// ClearDay removes every entry of the day. Clearing an empty day is not an
// error.
func (s *FoodLogDB) ClearDay(ctx context.Context, userID, logDate string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM food_logs WHERE user_id = ? AND log_date = ?`,
		userID, logDate,
	); err != nil {
		return fmt.Errorf("sqlite: clearing food log %s: %w", logDate, err)
	}
	return nil
}
