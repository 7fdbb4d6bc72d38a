package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

var _ repository.ResetTokenRepository = (*ResetTokenDB)(nil)

// ResetTokenDB stores password reset tokens. Expiry is kept as unix seconds
// so every comparison happens in UTC.
type ResetTokenDB struct {
	conn *sql.DB
}

// Replace deletes every outstanding token for the email and inserts the new
// one in the same transaction, so at most one token per email is live.
func (s *ResetTokenDB) Replace(ctx context.Context, token *model.PasswordResetToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	return withTx(ctx, s.conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM password_reset_tokens WHERE email = ?`, token.Email,
		); err != nil {
			return fmt.Errorf("sqlite: deleting reset tokens: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO password_reset_tokens (token, email, expires_at, used, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			token.Token,
			token.Email,
			token.ExpiresAt.UTC().Unix(),
			token.Used,
			token.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("sqlite: inserting reset token: %w", err)
		}
		return nil
	})
}

// Get returns the token row, or apperror.ErrNotFound.
func (s *ResetTokenDB) Get(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	t, err := scanResetToken(s.conn.QueryRowContext(ctx,
		`SELECT token, email, expires_at, used, created_at
		 FROM password_reset_tokens WHERE token = ?`, token,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("reset token", "redacted")
		}
		return nil, fmt.Errorf("sqlite: getting reset token: %w", err)
	}
	return t, nil
}

func scanResetToken(row rowScanner) (*model.PasswordResetToken, error) {
	var (
		t         model.PasswordResetToken
		expiresAt int64
	)
	if err := row.Scan(&t.Token, &t.Email, &expiresAt, &t.Used, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &t, nil
}

// Consume redeems a token: the used flag flips and the password hash is
// written in one transaction. The conditional UPDATE guards against two
// concurrent confirmations of the same token.
func (s *ResetTokenDB) Consume(ctx context.Context, token string, passwordHash string, now time.Time) error {
	nowUnix := now.UTC().Unix()

	return withTx(ctx, s.conn, func(tx *sql.Tx) error {
		t, err := scanResetToken(tx.QueryRowContext(ctx,
			`SELECT token, email, expires_at, used, created_at
			 FROM password_reset_tokens WHERE token = ?`, token,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.InvalidResetToken()
			}
			return fmt.Errorf("sqlite: loading reset token: %w", err)
		}
		if !t.Usable(now) {
			return apperror.InvalidResetToken()
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE password_reset_tokens SET used = 1
			 WHERE token = ? AND used = 0 AND expires_at > ?`,
			token, nowUnix,
		)
		if err != nil {
			return fmt.Errorf("sqlite: marking reset token used: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		} else if n == 0 {
			return apperror.InvalidResetToken()
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ?, updated_at = ?
			 WHERE email = ? AND password_hash IS NOT NULL`,
			passwordHash, now.UTC(), t.Email,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating password: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		} else if n == 0 {
			// The account was removed or lost its password after the
			// token was issued.
			return apperror.InvalidResetToken()
		}
		return nil
	})
}
