// Package totp implements the time-based one-time password engine used for
// the second authentication factor: shared-secret generation, time-windowed
// code derivation, and verification against a tolerance window.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	totplib "github.com/pquerna/otp/totp"
)

const (
	// Period is the counter step in seconds. 30s is what every client TOTP
	// app assumes.
	Period = 30

	// secretSize is the raw secret length in bytes. 20 bytes encodes to a
	// 32-character base32 string with no padding.
	secretSize = 20

	// DefaultTolerance is the number of counter steps accepted either side
	// of the current one (2 steps = roughly ±60s of clock drift).
	DefaultTolerance = 2

	// MaxTolerance caps the window at ±10 steps (5 minutes).
	MaxTolerance = 10
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine derives and verifies six digit codes from a shared base32 secret.
// The zero value is usable; Issuer only matters for enrollment URIs.
type Engine struct {
	Issuer    string
	Tolerance uint // steps either side of "now"; 0 means DefaultTolerance
}

// GenerateSecret returns a fresh random shared secret, base32 encoded
// without padding, suitable for any client TOTP app.
func (e *Engine) GenerateSecret() (string, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return b32NoPadding.EncodeToString(buf), nil
}

// Code derives the six digit code for the counter step containing at.
func (e *Engine) Code(secret string, at time.Time) (string, error) {
	code, err := totplib.GenerateCode(secret, at)
	if err != nil {
		return "", fmt.Errorf("totp: derive code: %w", err)
	}
	return code, nil
}

// Verify reports whether code is valid for secret at the current time,
// accepting any counter step within the tolerance window.
func (e *Engine) Verify(secret, code string) bool {
	return e.VerifyAt(secret, code, time.Now())
}

// VerifyAt is Verify against an explicit instant. The window is inclusive:
// steps in [at−tolerance, at+tolerance] all produce accepted codes.
func (e *Engine) VerifyAt(secret, code string, at time.Time) bool {
	ok, err := totplib.ValidateCustom(code, secret, at, totplib.ValidateOpts{
		Period:    Period,
		Skew:      e.tolerance(),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// EnrollmentURI builds the otpauth:// provisioning URI client apps consume,
// typically rendered as a QR code by the caller.
func (e *Engine) EnrollmentURI(account, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.Issuer)
	v.Set("period", fmt.Sprintf("%d", Period))
	v.Set("algorithm", otp.AlgorithmSHA1.String())
	v.Set("digits", otp.DigitsSix.String())

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + e.Issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

func (e *Engine) tolerance() uint {
	switch {
	case e.Tolerance == 0:
		return DefaultTolerance
	case e.Tolerance > MaxTolerance:
		return MaxTolerance
	default:
		return e.Tolerance
	}
}
