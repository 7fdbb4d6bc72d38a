// Package apperror defines the domain error taxonomy shared by services,
// repositories and handlers. Handlers translate these into HTTP statuses in
// one place (handler/response.go); nothing below the handler layer knows
// about status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthenticated covers bad credentials, bad or expired session
	// tokens, and sessions whose account no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidAssertion means a third-party identity token was rejected
	// by its provider or failed signature/audience checks.
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrInvalidResetToken is returned for unknown, used or expired
	// password reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	ErrRateLimited = errors.New("rate limited")

	// ErrBadRequest is a malformed request the core can classify without
	// a field, such as an unsupported identity provider.
	ErrBadRequest = errors.New("bad request")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Detail  string // Optional: server-side only, never sent to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AccountConflict signals that a uniqueness constraint on users (email or
// provider identity) was hit, usually by a concurrent request creating the
// same account. Callers may retry resolution.
func AccountConflict(detail string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "account conflict",
		Detail:  detail,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated returns a 401-class error. The message is shown to the
// client, so it must stay generic.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// InvalidAssertion wraps a provider verification failure. detail is logged
// by the handler and never returned to the client.
func InvalidAssertion(provider, detail string) *AppError {
	return &AppError{
		Err:     ErrInvalidAssertion,
		Message: fmt.Sprintf("invalid %s identity token", provider),
		Detail:  detail,
	}
}

func InvalidResetToken() *AppError {
	return &AppError{
		Err:     ErrInvalidResetToken,
		Message: "invalid or expired reset token",
	}
}

func RateLimited() *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: "too many requests, slow down",
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// EmailTaken is returned by registration when the email already has an
// account.
func EmailTaken() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "Email already registered",
		Field:   "email",
	}
}
