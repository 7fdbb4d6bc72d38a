package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/model"
)

// contextKey is unexported so only this package can read or write the
// values it stores in a request context.
type contextKey string

const userKey contextKey = "user"

// AccountLookup resolves a token subject to a live account.
// repository.UserRepository satisfies it.
type AccountLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth enforces a valid bearer token on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, and then loads
// the account: a valid token for a deleted account is still a 401, since
// tokens are not revoked on deletion. The loaded user is stored in the
// request context for handlers (see UserFromContext).
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService, accounts AccountLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("rejected session token", "error", detailOf(err))
				writeUnauthorized(w)
				return
			}

			user, err := accounts.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					logger.Info("session token for missing account", "user_id", userID)
					writeUnauthorized(w)
					return
				}
				logger.Error("loading session account", "user_id", userID, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"An internal error occurred"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user. Exposed for handler tests.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// UserIDFromContext is a shorthand for UserFromContext(ctx).ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	if !ok {
		return "", false
	}
	return u.ID, u.ID != ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"invalid or expired token"}`))
}

func detailOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Detail != "" {
		return appErr.Detail
	}
	return err.Error()
}
