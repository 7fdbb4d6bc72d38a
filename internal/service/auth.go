// Package service contains the business logic layer.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests run
// against in-memory fakes. They return apperror values and know nothing
// about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = auth.MaxPasswordBytes

	// fallbackDisplayName is used for social accounts that share neither a
	// name nor an email.
	fallbackDisplayName = "Athlete"

	// resolveAttempts bounds SocialExchange retries after losing a
	// creation race to a concurrent request.
	resolveAttempts = 2
)

// IdentityVerifier verifies a provider identity token. *auth.Registry
// implements it.
type IdentityVerifier interface {
	Verify(ctx context.Context, provider model.Provider, idToken string) (*auth.Assertion, error)
}

// AuthRecorder counts authentication outcomes. *metrics.Metrics implements it.
type AuthRecorder interface {
	AuthOutcome(method, outcome string)
}

// AuthService handles registration, sign-in and identity resolution.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	identities IdentityVerifier
	recorder   AuthRecorder
	logger     *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	identities IdentityVerifier,
	recorder AuthRecorder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		passwords:  passwords,
		identities: identities,
		recorder:   recorder,
		logger:     logger,
	}
}

// AuthResult is a signed-in user and their session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs it in. displayName
// defaults to the local-part of the email.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = auth.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	// The UNIQUE index is the real guard; this lookup gives the common case
	// a clear message.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.record("register", "conflict")
		return nil, apperror.EmailTaken()
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = localPart(email)
	}

	user := &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Provider:     model.ProviderEmail,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.record("register", "conflict")
			return nil, apperror.EmailTaken()
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	s.record("register", "success")
	return s.signIn(user)
}

// Login checks an email and password. Unknown email and wrong password
// produce the same error and take the same time. Any account with a
// password hash can sign in this way, including one later linked to Google
// or Apple: linking adds a sign-in method and never removes the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = auth.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: loading user: %w", err)
		}
		s.passwords.Equalize(password)
		s.record("password", "invalid_credentials")
		return nil, apperror.Unauthenticated("Invalid email or password")
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		s.record("password", "invalid_credentials")
		return nil, apperror.Unauthenticated("Invalid email or password")
	}

	s.record("password", "success")
	return s.signIn(user)
}

// SocialExchange verifies a provider identity token, resolves it to a
// local account and signs that account in.
//
// Resolution is read-then-write and can lose a race against a concurrent
// exchange for the same new identity. The loser sees a uniqueness conflict
// and resolves again, which then finds the winner's account.
func (s *AuthService) SocialExchange(ctx context.Context, provider model.Provider, idToken string) (*AuthResult, error) {
	method := string(provider)

	assertion, err := s.identities.Verify(ctx, provider, idToken)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Detail != "" {
			s.logger.Warn("identity token rejected",
				slog.String("provider", method),
				slog.String("detail", appErr.Detail),
			)
		}
		s.record(method, outcomeOf(err))
		return nil, err
	}

	var user *model.User
	for attempt := 1; ; attempt++ {
		user, err = s.ResolveIdentity(ctx, assertion)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrConflict) && attempt < resolveAttempts {
			s.logger.Info("identity resolution lost a race, retrying",
				slog.String("provider", method),
				slog.Int("attempt", attempt),
			)
			continue
		}
		s.record(method, outcomeOf(err))
		return nil, err
	}

	s.record(method, "success")
	return s.signIn(user)
}

// ResolveIdentity finds or creates the local account for a verified
// assertion:
//
//  1. an account already bound to (provider, subject) is returned unchanged;
//  2. else an account with the same provider-verified email is linked to
//     the identity and returned;
//  3. else a new account is created.
//
// Step 2 hands an existing account to whoever controls the social identity,
// so it only runs when the provider vouches for the email. An unverified
// email is not stored on new accounts either, so it cannot be used for a
// later link or a password reset.
func (s *AuthService) ResolveIdentity(ctx context.Context, a *auth.Assertion) (*model.User, error) {
	user, err := s.users.GetByProviderID(ctx, a.Provider, a.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s identity: %w", a.Provider, err)
	}

	trustedEmail := ""
	if a.Email != "" && a.EmailVerified {
		trustedEmail = a.Email
	}

	if trustedEmail != "" {
		user, err := s.users.GetByEmail(ctx, trustedEmail)
		switch {
		case err == nil:
			if err := s.users.LinkProvider(ctx, user.ID, a.Provider, a.Subject); err != nil {
				return nil, fmt.Errorf("service/auth: linking %s identity: %w", a.Provider, err)
			}
			s.logger.Info("linked identity to existing account",
				slog.String("userID", user.ID),
				slog.String("provider", string(a.Provider)),
				slog.String("previousProvider", string(user.Provider)),
			)
			user.Provider = a.Provider
			user.ProviderID = a.Subject
			return user, nil
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("service/auth: looking up email: %w", err)
		}
	}

	user = &model.User{
		Email:       trustedEmail,
		DisplayName: socialDisplayName(a.Name, a.Email),
		Provider:    a.Provider,
		ProviderID:  a.Subject,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating %s account: %w", a.Provider, err)
	}

	s.logger.Info("created account from identity",
		slog.String("userID", user.ID),
		slog.String("provider", string(a.Provider)),
	)
	return user, nil
}

// CurrentUser returns the account for a validated session subject.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid or expired token")
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) signIn(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) record(method, outcome string) {
	if s.recorder != nil {
		s.recorder.AuthOutcome(method, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperror.ErrInvalidAssertion):
		return "invalid_assertion"
	case errors.Is(err, apperror.ErrConflict):
		return "conflict"
	case errors.Is(err, apperror.ErrBadRequest), errors.Is(err, apperror.ErrValidation):
		return "bad_request"
	default:
		return "error"
	}
}

func validateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if email == "" || at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return apperror.ValidationFailed("email", "a valid email address is required")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func socialDisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if email != "" {
		return localPart(email)
	}
	return fallbackDisplayName
}
