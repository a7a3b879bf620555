package authsdk

import "fmt"

// Error codes the service emits in the {error, error_description} body.
const (
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeInvalidToken    = "invalid_token"
	ErrorCodeTokenExpired    = "token_expired"
	ErrorCodeInvalidCreds    = "invalid_credentials"
	ErrorCodeCodeMismatch    = "code_mismatch"
	ErrorCodeUserNotFound    = "user_not_found"
	ErrorCodeEmailTaken      = "email_taken"
	ErrorCodeTFAEnabled      = "tfa_already_enabled"
	ErrorCodeTFANotEnabled   = "tfa_not_enabled"
	ErrorCodeBackupExhausted = "backup_tokens_exhausted"
	ErrorCodeRateLimited     = "rate_limit_exceeded"
	ErrorCodeServerError     = "server_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	// StatusCode is the HTTP status the server answered with.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is the human-readable detail.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is lets callers match on sentinel errors by code:
// errors.Is(err, &authsdk.APIError{Code: authsdk.ErrorCodeEmailTaken})
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}
