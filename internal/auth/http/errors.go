package http

import (
	"errors"
	"net/http"

	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/pkg/httpx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
)

// writeServiceError maps the service error taxonomy to HTTP responses.
// Anything unmapped is a 500 with a generic body; the detail goes to the
// log, never the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Incorrect email or password")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized,
			"token_expired", "Token has expired")
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "Token is invalid")
	case errors.Is(err, service.ErrCodeMismatch):
		httpx.WriteError(w, http.StatusForbidden,
			"code_mismatch", "The provided code does not match")
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound,
			"user_not_found", "User not found")
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict,
			"email_taken", "An account with this email already exists")
	case errors.Is(err, service.ErrTFAAlreadyEnabled):
		httpx.WriteError(w, http.StatusConflict,
			"tfa_already_enabled", "Two-factor authentication is already enabled")
	case errors.Is(err, service.ErrTFANotEnabled):
		httpx.WriteError(w, http.StatusForbidden,
			"tfa_not_enabled", "Two-factor authentication is not enabled")
	case errors.Is(err, service.ErrBackupExhausted):
		httpx.WriteError(w, http.StatusNotFound,
			"backup_tokens_exhausted", "No backup tokens remain, contact an administrator")
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", err.Error())
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "An internal error occurred")
	}
}
