package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/config"
)

const testSecret = "test-secret-that-is-at-least-32-chars!"

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		Secret:    testSecret,
		Algorithm: "HS256",
		TTL:       time.Hour,
		Issuer:    "vegfuel",
	}
}

// newTestTokenService creates a TokenService with a fixed secret so tests
// are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testTokenConfig())
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.TokenConfig)
	}{
		{"short secret", func(c *config.TokenConfig) { c.Secret = "short" }},
		{"asymmetric algorithm", func(c *config.TokenConfig) { c.Algorithm = "RS256" }},
		{"none algorithm", func(c *config.TokenConfig) { c.Algorithm = "none" }},
		{"unknown algorithm", func(c *config.TokenConfig) { c.Algorithm = "HS1024" }},
		{"zero ttl", func(c *config.TokenConfig) { c.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTokenConfig()
			tt.mutate(&cfg)
			if _, err := NewTokenService(cfg); err == nil {
				t.Error("NewTokenService() should have failed")
			}
		})
	}
}

// =========================================================================
// ISSUE / VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Issue() token doesn't look like a JWT: %q", token)
	}

	userID, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if userID != "user-123" {
		t.Errorf("Validate() userID = %q, want %q", userID, "user-123")
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Issue(""); err == nil {
		t.Error("Issue(\"\") should fail")
	}
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.IssueWithTTL("user-123", -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Validate() error = %v, want ErrUnauthenticated", err)
	}
}

func TestValidate_ExpiresAfterTTL(t *testing.T) {
	ts := newTestTokenService(t)
	issuedAt := time.Now()
	ts.now = func() time.Time { return issuedAt }

	token, err := ts.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	ts.now = func() time.Time { return issuedAt.Add(ts.TTL() - time.Minute) }
	if _, err := ts.Validate(token); err != nil {
		t.Errorf("Validate() before TTL error = %v", err)
	}

	ts.now = func() time.Time { return issuedAt.Add(ts.TTL() + time.Minute) }
	if _, err := ts.Validate(token); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Validate() after TTL error = %v, want ErrUnauthenticated", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key any, c jwt.RegisteredClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "vegfuel",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	noSubject := valid
	noSubject.Subject = ""
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	good := sign(jwt.SigningMethodHS256, []byte(testSecret), valid)
	tampered := good[:len(good)-4] + "AAAA"

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"tampered signature", tampered},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret-that-is-32-chars-long!"), valid)},
		{"other HMAC algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{"alg none", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{"missing subject", sign(jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{"missing expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			if !errors.Is(err, apperror.ErrUnauthenticated) {
				t.Errorf("Validate() error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestValidate_GenericMessage(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.Validate("not-a-jwt")

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Validate() error type = %T, want *apperror.AppError", err)
	}
	if appErr.Message != "invalid or expired token" {
		t.Errorf("Message = %q", appErr.Message)
	}
	if appErr.Detail == "" {
		t.Error("Detail should carry the parser error for logs")
	}
}
