// Package auth holds the authentication primitives: password hashing,
// session tokens, the bearer-token middleware and the third-party identity
// verifiers (Google, Apple).
//
// SESSION TOKENS:
// A session token is a JWT signed with a server-held HMAC secret:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","iss":"vegfuel","iat":...,"exp":...}
//
// Tokens are stateless. Validity is signature + expiry; nothing is stored
// and nothing can be revoked before expiry.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/config"
)

// TokenService issues and validates session tokens.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	issuer string

	now func() time.Time
}

// NewTokenService builds a TokenService from validated configuration.
// Only HMAC algorithms are accepted.
func NewTokenService(cfg config.TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < config.MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", config.MinSecretLength)
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// TTL is the lifetime of tokens returned by Issue.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue returns a signed token for userID that expires after the configured
// TTL.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithTTL(userID, s.ttl)
}

// IssueWithTTL is Issue with an explicit lifetime. A zero or negative ttl
// yields an already-expired token, which tests use to exercise expiry.
func (s *TokenService) IssueWithTTL(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}

	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer and expiry and returns the subject.
//
// ALGORITHM PINNING:
// The expected algorithm comes from configuration, never from the token's
// own "alg" header. WithValidMethods rejects "none", RS256 and any HMAC
// variant other than the configured one before the key is even consulted,
// and the keyfunc double-checks the method type.
//
// Every failure is reported as apperror.ErrUnauthenticated with the same
// generic message; the underlying reason is kept in Detail for logs.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", invalidToken(err.Error())
	}
	if !token.Valid {
		return "", invalidToken("token not valid")
	}
	if c.Subject == "" {
		return "", invalidToken("token has no subject")
	}
	return c.Subject, nil
}

func invalidToken(detail string) error {
	e := apperror.Unauthenticated("invalid or expired token")
	e.Detail = detail
	return e
}
