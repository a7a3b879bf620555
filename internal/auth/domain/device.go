package domain

import "time"

// DeviceType identifies how a user receives their TOTP codes.
type DeviceType string

const (
	// DeviceTypeEmail delivers each TOTP code to the user's inbox.
	DeviceTypeEmail DeviceType = "email"
	// DeviceTypeCodeGenerator means the user runs an authenticator app
	// provisioned from the enrollment URI.
	DeviceTypeCodeGenerator DeviceType = "code_generator"
)

// Valid reports whether t is one of the known device types.
func (t DeviceType) Valid() bool {
	return t == DeviceTypeEmail || t == DeviceTypeCodeGenerator
}

// Device is a user's enrolled second factor. Each user has at most one.
// SecretKey holds the TOTP secret encrypted at rest; it is kept for both
// device types because email delivery still derives codes from it.
type Device struct {
	ID        string
	UserID    string
	Type      DeviceType
	SecretKey string // AES-GCM sealed base32 TOTP secret
	CreatedAt time.Time
}

// BackupToken is a single-use recovery code tied to a device. It is
// deleted on consumption, so presence implies validity.
type BackupToken struct {
	ID       string
	DeviceID string
	Code     string
}
