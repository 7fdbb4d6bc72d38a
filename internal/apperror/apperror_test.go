package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("mixture", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("password", "password must be at least 8 characters"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("mixture", "oats"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "AccountConflict wraps ErrConflict",
			err:       AccountConflict("users.email"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated("invalid email or password"),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "InvalidAssertion wraps ErrInvalidAssertion",
			err:       InvalidAssertion("apple", "audience mismatch"),
			target:    ErrInvalidAssertion,
			wantMatch: true,
		},
		{
			name:      "InvalidAssertion is not ErrUnauthenticated",
			err:       InvalidAssertion("google", "expired"),
			target:    ErrUnauthenticated,
			wantMatch: false,
		},
		{
			name:      "InvalidResetToken wraps ErrInvalidResetToken",
			err:       InvalidResetToken(),
			target:    ErrInvalidResetToken,
			wantMatch: true,
		},
		{
			name:      "EmailTaken wraps ErrConflict",
			err:       EmailTaken(),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "BadRequest wraps ErrBadRequest",
			err:       BadRequest("unsupported provider"),
			target:    ErrBadRequest,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service: %w", NotFound("user", "u1")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("mixture", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("mixture", "abc123"),
			wantMessage: "mixture not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "InvalidAssertion names the provider only",
			err:         InvalidAssertion("apple", "kid abc not in key set"),
			wantMessage: "invalid apple identity token",
		},
		{
			name:        "AccountConflict hides the constraint",
			err:         AccountConflict("UNIQUE constraint failed: users.email"),
			wantMessage: "account conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestDetailNotInMessage(t *testing.T) {
	err := InvalidAssertion("google", "tokeninfo returned 400")

	if err.Detail != "tokeninfo returned 400" {
		t.Errorf("Detail = %q, want provider detail", err.Detail)
	}
	if err.Error() == err.Detail {
		t.Error("Error() must not expose the server-side detail")
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("mixture", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
