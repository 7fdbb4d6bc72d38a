package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
)

// THIRD-PARTY IDENTITY:
// Mobile clients sign in with Google or Apple on the device and send us the
// provider's identity token. Each provider has a Verifier that checks the
// token against that provider's trust root and reduces it to an Assertion.
// Verifiers never retry; a provider outage surfaces as a failed sign-in.

// Assertion is what a verified identity token tells us about the user.
type Assertion struct {
	Provider model.Provider
	Subject  string // stable provider-scoped user id ("sub")

	// Email may be empty: Apple only sends it on the first authorization.
	Email string
	// EmailVerified is the provider's own claim that it verified Email.
	// Only verified emails are trusted for account linking.
	EmailVerified bool
	Name          string
}

// Verifier checks an identity token with one provider.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Assertion, error)
}

// Registry selects a Verifier by provider tag.
type Registry struct {
	verifiers map[model.Provider]Verifier
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[model.Provider]Verifier)}
}

// Register installs v for provider, replacing any previous verifier.
func (r *Registry) Register(provider model.Provider, v Verifier) {
	r.verifiers[provider] = v
}

// Verify dispatches to the provider's verifier. Unknown or unconfigured
// providers are a bad request, not an authentication failure.
func (r *Registry) Verify(ctx context.Context, provider model.Provider, idToken string) (*Assertion, error) {
	v, ok := r.verifiers[provider]
	if !ok {
		return nil, apperror.BadRequest("Unsupported provider")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, apperror.ValidationFailed("id_token", "id_token is required")
	}

	a, err := v.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if a.Subject == "" {
		return nil, apperror.InvalidAssertion(string(provider), "assertion has no subject")
	}
	a.Provider = provider
	a.Email = NormalizeEmail(a.Email)
	return a, nil
}

// NormalizeEmail trims and lowercases an address so lookups and the UNIQUE
// index agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewHTTPClient returns the client used for provider calls. The timeout
// bounds the whole exchange, including reading the body.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// flexBool decodes both true and "true". Google's tokeninfo sends booleans
// as strings; Apple has sent both forms over time.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", data)
	}
	return nil
}

// flexUnix decodes a unix timestamp sent as a number or a numeric string.
type flexUnix int64

func (u *flexUnix) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unix time %q", data)
	}
	*u = flexUnix(n)
	return nil
}

// getJSON issues a GET and decodes a 200 response into dst. Non-200
// responses return errStatus so callers can map them.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.code)
}
