package service

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses cannot be used to probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired is returned when a presented token is past its exp.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned for malformed, tampered, or wrong-domain
	// tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrCodeMismatch means the submitted TOTP or backup code did not match.
	ErrCodeMismatch = errors.New("code mismatch")

	// ErrUserNotFound is returned when a token's subject no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned from signup on a duplicate email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrTFAAlreadyEnabled guards double enrollment.
	ErrTFAAlreadyEnabled = errors.New("two-factor authentication already enabled")

	// ErrTFANotEnabled is returned when a TFA operation needs an enrolled
	// device and there is none.
	ErrTFANotEnabled = errors.New("two-factor authentication not enabled")

	// ErrBackupExhausted means every backup token has been consumed; the
	// account needs administrator intervention.
	ErrBackupExhausted = errors.New("backup tokens exhausted")

	// ErrValidation is wrapped around bad-input failures.
	ErrValidation = errors.New("validation failed")
)
