package handler

// RESPONSE HELPERS:
// Every error response has the same shape:
//
//	{"error": "not_found", "message": "mixture not found with id abc123"}
//
// Validation errors add the offending field:
//
//	{"error": "validation_error", "message": "...", "field": "password"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jborcher/vegfuel/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable error type
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code. Headers must
// be set before WriteHeader; anything set after is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// This is the only place domain errors become status codes. AppError.Detail
// (provider responses, constraint names) goes to the log, never the client,
// and untyped errors become a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("unclassified application error", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: "An internal error occurred"})
		return
	}

	if appErr.Detail != "" {
		logger.Info("request rejected",
			slog.String("error", errorType),
			slog.String("detail", appErr.Detail),
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="vegfuel"`)
	}

	resp := ErrorResponse{Error: errorType, Message: appErr.Message}
	if status == http.StatusUnprocessableEntity {
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, apperror.ErrInvalidResetToken):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, apperror.ErrUnauthenticated), errors.Is(err, apperror.ErrInvalidAssertion):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	}
	return http.StatusInternalServerError, "internal_error"
}
