package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/config"
)

// newTokenInfoServer serves canned tokeninfo responses keyed by id_token.
func newTokenInfoServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Query().Get("id_token")]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_token","error_description":"Invalid Value"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// googleNow is the verifier clock in these tests: 2026-03-01 12:00 UTC,
// unix 1772366400. Fixtures expire an hour later.
var googleNow = time.Unix(1772366400, 0)

func newTestGoogleVerifier(url string, clientIDs ...string) *GoogleVerifier {
	v := NewGoogleVerifier(config.IdentityConfig{
		GoogleTokenInfoURL: url,
		GoogleClientIDs:    clientIDs,
	}, NewHTTPClient(2*time.Second))
	v.now = func() time.Time { return googleNow }
	return v
}

func TestGoogleVerify_Success(t *testing.T) {
	srv := newTokenInfoServer(t, map[string]string{
		"good": `{"sub":"abc123","aud":"web-client","iss":"https://accounts.google.com",
			"email":"runner@example.com","email_verified":"true","name":"Trail Runner","exp":"1772370000"}`,
	})
	v := newTestGoogleVerifier(srv.URL, "web-client", "ios-client")

	a, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "abc123", a.Subject)
	assert.Equal(t, "runner@example.com", a.Email)
	assert.True(t, a.EmailVerified)
	assert.Equal(t, "Trail Runner", a.Name)
}

func TestGoogleVerify_NoAudienceConfigured(t *testing.T) {
	srv := newTokenInfoServer(t, map[string]string{
		"good": `{"sub":"abc123","aud":"anything","exp":1772370000}`,
	})
	v := newTestGoogleVerifier(srv.URL)

	a, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Empty(t, a.Email)
	assert.False(t, a.EmailVerified)
}

func TestGoogleVerify_Rejections(t *testing.T) {
	srv := newTokenInfoServer(t, map[string]string{
		"error-field":  `{"error":"invalid_token"}`,
		"no-sub":       `{"aud":"web-client"}`,
		"wrong-aud":    `{"sub":"abc","aud":"someone-elses-app"}`,
		"wrong-issuer": `{"sub":"abc","aud":"web-client","iss":"evil.example.com"}`,
		"no-exp":       `{"sub":"abc","aud":"web-client"}`,
		"expired":      `{"sub":"abc","aud":"web-client","exp":"1772366400"}`,
		"bad-exp":      `{"sub":"abc","aud":"web-client","exp":"soon"}`,
	})
	v := newTestGoogleVerifier(srv.URL, "web-client")

	for _, token := range []string{"error-field", "no-sub", "wrong-aud", "wrong-issuer", "no-exp", "expired", "bad-exp", "unknown"} {
		t.Run(token, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, apperror.ErrInvalidAssertion)
		})
	}
}

func TestGoogleVerify_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestGoogleVerifier(url).Verify(context.Background(), "token")
	assert.ErrorIs(t, err, apperror.ErrInvalidAssertion)
}

func TestGoogleVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	v := NewGoogleVerifier(config.IdentityConfig{GoogleTokenInfoURL: srv.URL}, NewHTTPClient(50*time.Millisecond))

	start := time.Now()
	_, err := v.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, apperror.ErrInvalidAssertion)
	assert.Less(t, time.Since(start), time.Second)
}
