package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/config"
)

// APPLE IDENTITY TOKENS:
// "Sign in with Apple" hands the app an RS256 JWT. Unlike Google there is no
// introspection endpoint, so we verify it ourselves:
//
//  1. read the (unverified) header for the key id "kid"
//  2. fetch Apple's current public keys (a JWKS document)
//  3. pick the key with that kid and verify the RS256 signature
//  4. check aud == our client id, iss == Apple, and exp
//
// Decoding the payload without step 3 would let anyone mint a token for any
// Apple account.

// AppleVerifier validates Apple identity tokens.
type AppleVerifier struct {
	client   *http.Client
	keysURL  string
	clientID string
	issuer   string

	now func() time.Time
}

// NewAppleVerifier builds a verifier for the configured Apple client id.
func NewAppleVerifier(cfg config.IdentityConfig, client *http.Client) *AppleVerifier {
	return &AppleVerifier{
		client:   client,
		keysURL:  cfg.AppleKeysURL,
		clientID: cfg.AppleClientID,
		issuer:   cfg.AppleIssuer,
		now:      time.Now,
	}
}

type appleClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
}

// jwk is one RSA key of a JSON Web Key Set.
type jwk struct {
	KeyType string `json:"kty"`
	KeyID   string `json:"kid"`
	Use     string `json:"use"`
	Alg     string `json:"alg"`
	N       string `json:"n"`
	E       string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// Verify implements Verifier.
func (a *AppleVerifier) Verify(ctx context.Context, idToken string) (*Assertion, error) {
	if a.clientID == "" {
		return nil, apperror.InvalidAssertion("apple", "apple client id is not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(a.clientID),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	var claims appleClaims
	_, err := parser.ParseWithClaims(idToken, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return a.publicKey(ctx, kid)
	})
	if err != nil {
		return nil, apperror.InvalidAssertion("apple", err.Error())
	}
	if claims.Subject == "" {
		return nil, apperror.InvalidAssertion("apple", "token has no sub")
	}

	return &Assertion{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}

// publicKey fetches the key set and returns the RSA key with the given kid.
// Keys are fetched per call; Apple rotates them without notice.
func (a *AppleVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	var set jwkSet
	if err := getJSON(ctx, a.client, a.keysURL, &set); err != nil {
		return nil, fmt.Errorf("fetching apple keys: %w", err)
	}

	for _, k := range set.Keys {
		if k.KeyID != kid {
			continue
		}
		if k.KeyType != "RSA" {
			return nil, fmt.Errorf("key %s has type %q, want RSA", kid, k.KeyType)
		}
		return k.rsaPublicKey()
	}
	return nil, fmt.Errorf("no apple key with kid %q", kid)
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus of key %s: %w", k.KeyID, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent of key %s: %w", k.KeyID, err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 || len(eBytes) > 4 {
		return nil, fmt.Errorf("key %s has malformed parameters", k.KeyID)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
