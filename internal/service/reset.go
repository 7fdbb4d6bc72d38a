package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/config"
	"github.com/jborcher/vegfuel/internal/mail"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

// resetTokenBytes is the entropy of a reset token before encoding.
const resetTokenBytes = 32

// Mailer composes and sends email in the background. *mail.Dispatcher
// implements it.
type Mailer interface {
	DispatchFunc(compose mail.Compose)
}

// ResetService runs the password reset flow.
//
// RequestReset answers the same way whether or not the email belongs to a
// password account. The account lookup, the token write and delivery all
// run after the call returns, so response time does not depend on the
// account either.
type ResetService struct {
	users     repository.UserRepository
	tokens    repository.ResetTokenRepository
	passwords *auth.PasswordService
	mailer    Mailer
	cfg       config.ResetConfig
	logger    *slog.Logger

	now      func() time.Time
	newToken func() (string, error)
}

func NewResetService(
	users repository.UserRepository,
	tokens repository.ResetTokenRepository,
	passwords *auth.PasswordService,
	mailer Mailer,
	cfg config.ResetConfig,
	logger *slog.Logger,
) *ResetService {
	return &ResetService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newToken:  randomToken,
	}
}

// RequestReset queues a reset for email and returns nil. The work happens
// in composeReset on the mailer's goroutine.
func (s *ResetService) RequestReset(_ context.Context, email string) error {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	s.mailer.DispatchFunc(func(ctx context.Context) (mail.Message, bool) {
		return s.composeReset(ctx, email)
	})
	return nil
}

// composeReset issues a reset token for a password account and renders the
// link email. Any earlier token for the same email stops working. Unknown
// emails and social-only accounts produce no message.
func (s *ResetService) composeReset(ctx context.Context, email string) (mail.Message, bool) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Debug("reset requested for unknown email")
		} else {
			s.logger.Error("loading user for reset", slog.String("error", err.Error()))
		}
		return mail.Message{}, false
	}
	if !user.HasPassword() {
		s.logger.Debug("reset requested for social-only account", slog.String("userID", user.ID))
		return mail.Message{}, false
	}

	value, err := s.newToken()
	if err != nil {
		s.logger.Error("generating reset token", slog.String("error", err.Error()))
		return mail.Message{}, false
	}

	now := s.now().UTC()
	token := &model.PasswordResetToken{
		Token:     value,
		Email:     email,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.tokens.Replace(ctx, token); err != nil {
		s.logger.Error("storing reset token",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return mail.Message{}, false
	}

	msg, err := mail.PasswordReset(email, s.cfg.LinkURL, value, s.cfg.TTL)
	if err != nil {
		s.logger.Error("rendering reset email", slog.String("error", err.Error()))
		return mail.Message{}, false
	}

	s.logger.Info("password reset requested", slog.String("userID", user.ID))
	return msg, true
}

// ConfirmReset sets a new password using a reset token. The token is
// single-use: the used flag and the new hash are written together.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperror.InvalidResetToken()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/reset: %w", err)
	}

	if err := s.tokens.Consume(ctx, token, hash, s.now()); err != nil {
		if errors.Is(err, apperror.ErrInvalidResetToken) {
			return err
		}
		return fmt.Errorf("service/reset: consuming token: %w", err)
	}

	s.logger.Info("password reset completed")
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
