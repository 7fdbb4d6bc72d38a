package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jborcher/vegfuel/internal/config"
)

// GOOGLE WEB SIGN-IN (OAuth2 authorization code flow):
// Browser clients have no native Google SDK to hand us an ID token, so the
// server runs the redirect flow itself:
//
//	Browser → GET /auth/google/login → 307 to accounts.google.com
//	Google  → GET /auth/google/callback?code=...&state=...
//	Server  → POST code to Google's token endpoint, receives an id_token
//
// The id_token then goes through the same GoogleVerifier and identity
// resolution as a mobile sign-in.

// GoogleWebFlow runs the OAuth2 code exchange against Google.
type GoogleWebFlow struct {
	config *oauth2.Config
	client *http.Client
}

// NewGoogleWebFlow returns nil when no client secret or redirect URL is
// configured; the web routes then answer 404.
func NewGoogleWebFlow(cfg config.IdentityConfig, client *http.Client) *GoogleWebFlow {
	if cfg.GoogleClientSecret == "" || cfg.GoogleRedirectURL == "" || len(cfg.GoogleClientIDs) == 0 {
		return nil
	}
	return &GoogleWebFlow{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientIDs[0],
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		client: client,
	}
}

// AuthURL is the Google consent page URL. state is echoed back on the
// callback and must match the value stored in the browser's cookie.
func (f *GoogleWebFlow) AuthURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for Google's ID token.
func (f *GoogleWebFlow) Exchange(ctx context.Context, code string) (string, error) {
	// oauth2 picks its HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)

	tok, err := f.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", errors.New("auth: token response has no id_token")
	}
	return idToken, nil
}
