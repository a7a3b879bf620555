package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/store"
	"github.com/paddockhq/gatehouse/pkg/cryptox"
	"github.com/paddockhq/gatehouse/pkg/idx"
	"github.com/paddockhq/gatehouse/pkg/jwtx"
)

// VerifyTFA completes the two-factor handshake: a live pre-TFA token plus
// a TOTP code within the tolerance window yields a full session pair.
func (s *AuthService) VerifyTFA(ctx context.Context, preTFAToken, code string) (domain.TokenPair, error) {
	userID, err := s.verifyToken(jwtx.DomainPreTFA, preTFAToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	device, err := s.Store.Devices().GetDeviceByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrTFANotEnabled
		}
		return domain.TokenPair{}, fmt.Errorf("lookup device: %w", err)
	}

	secret, err := s.Secrets.Decrypt(device.SecretKey)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("unseal device secret: %w", err)
	}

	if !s.TOTP.Verify(secret, code) {
		return domain.TokenPair{}, ErrCodeMismatch
	}

	return s.mintPair(userID)
}

// RecoverWithBackupToken completes the handshake with a single-use recovery
// code instead of a TOTP code. Consumption is atomic: when the same code is
// submitted concurrently, exactly one caller gets a session.
func (s *AuthService) RecoverWithBackupToken(ctx context.Context, preTFAToken, backupCode string) (domain.TokenPair, error) {
	userID, err := s.verifyToken(jwtx.DomainPreTFA, preTFAToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	device, err := s.Store.Devices().GetDeviceByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrTFANotEnabled
		}
		return domain.TokenPair{}, fmt.Errorf("lookup device: %w", err)
	}

	remaining, err := s.Store.BackupTokens().CountDeviceBackupTokens(ctx, device.ID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("count backup tokens: %w", err)
	}
	if remaining == 0 {
		return domain.TokenPair{}, ErrBackupExhausted
	}

	// Match and delete in one statement; a miss here means the code is
	// wrong or was consumed by a concurrent request.
	if err := s.Store.BackupTokens().ConsumeBackupToken(ctx, device.ID, backupCode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrCodeMismatch
		}
		return domain.TokenPair{}, fmt.Errorf("consume backup token: %w", err)
	}

	return s.mintPair(userID)
}

// EnableTFA enrolls a second factor on an existing account. The flag flip,
// device row, and backup token batch commit together or not at all.
func (s *AuthService) EnableTFA(ctx context.Context, userID string, deviceType domain.DeviceType) (SignupResult, error) {
	if !deviceType.Valid() {
		return SignupResult{}, fmt.Errorf("%w: device type", ErrValidation)
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SignupResult{}, ErrUserNotFound
		}
		return SignupResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.TFAEnabled {
		return SignupResult{}, ErrTFAAlreadyEnabled
	}

	var enrollment enrollmentResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetTFAEnabled(ctx, userID, true); err != nil {
			return fmt.Errorf("enable tfa flag: %w", err)
		}
		var err error
		enrollment, err = s.createDeviceWithTokens(ctx, tx, user, deviceType)
		return err
	})
	if err != nil {
		return SignupResult{}, err
	}

	user.TFAEnabled = true
	s.dispatchBackupTokens(ctx, user.Email, enrollment.backupCodes)

	return SignupResult{User: user, EnrollmentURI: enrollment.uri}, nil
}

// EnrollmentQR returns the otpauth provisioning URI for an authenticated
// user with a code-generator device; anything else is a validation error.
func (s *AuthService) EnrollmentQR(ctx context.Context, userID string) (string, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.TFAEnabled {
		return "", fmt.Errorf("%w: two-factor authentication not enabled", ErrValidation)
	}

	device, err := s.Store.Devices().GetDeviceByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: no enrolled device", ErrValidation)
		}
		return "", fmt.Errorf("lookup device: %w", err)
	}
	if device.Type != domain.DeviceTypeCodeGenerator {
		return "", fmt.Errorf("%w: device does not use an authenticator app", ErrValidation)
	}

	secret, err := s.Secrets.Decrypt(device.SecretKey)
	if err != nil {
		return "", fmt.Errorf("unseal device secret: %w", err)
	}
	return s.TOTP.EnrollmentURI(user.Email, secret), nil
}

type enrollmentResult struct {
	device      domain.Device
	backupCodes []string
	uri         string
}

// createDeviceWithTokens writes the device row and its backup token batch
// inside the caller's transaction. The TOTP secret is sealed before it
// touches the database; the enrollment URI carries the plaintext secret and
// is only returned for code-generator devices.
func (s *AuthService) createDeviceWithTokens(ctx context.Context, tx store.Tx, user domain.User, deviceType domain.DeviceType) (enrollmentResult, error) {
	secret, err := s.TOTP.GenerateSecret()
	if err != nil {
		return enrollmentResult{}, err
	}
	sealed, err := s.Secrets.Encrypt(secret)
	if err != nil {
		return enrollmentResult{}, fmt.Errorf("seal device secret: %w", err)
	}

	device := domain.Device{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Type:      deviceType,
		SecretKey: sealed,
	}
	if err := tx.Devices().CreateDevice(ctx, device); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return enrollmentResult{}, ErrTFAAlreadyEnabled
		}
		return enrollmentResult{}, fmt.Errorf("create device: %w", err)
	}

	count := s.BackupTokenCount
	if count <= 0 {
		count = DefaultBackupTokenCount
	}
	codes, err := cryptox.GenerateBackupCodes(count)
	if err != nil {
		return enrollmentResult{}, fmt.Errorf("generate backup codes: %w", err)
	}
	for _, code := range codes {
		if err := tx.BackupTokens().CreateBackupToken(ctx, domain.BackupToken{
			ID:       idx.New().String(),
			DeviceID: device.ID,
			Code:     code,
		}); err != nil {
			return enrollmentResult{}, fmt.Errorf("store backup token: %w", err)
		}
	}

	res := enrollmentResult{device: device, backupCodes: codes}
	if deviceType == domain.DeviceTypeCodeGenerator {
		res.uri = s.TOTP.EnrollmentURI(user.Email, secret)
	}
	return res, nil
}
