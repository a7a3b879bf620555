package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/store"
	"github.com/paddockhq/gatehouse/pkg/cryptox"
	"github.com/paddockhq/gatehouse/pkg/idx"
	"github.com/paddockhq/gatehouse/pkg/jwtx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
	"github.com/paddockhq/gatehouse/pkg/totp"
)

// DefaultBackupTokenCount is how many recovery codes a fresh device gets.
const DefaultBackupTokenCount = 5

// Mailer is the slice of the mail package the orchestrator needs. Delivery
// is fire-and-forget: enqueue failures are logged, never surfaced to the
// caller.
type Mailer interface {
	SendTOTPCode(ctx context.Context, to string, code string) error
	SendBackupTokens(ctx context.Context, to string, codes []string) error
}

// AuthService orchestrates signup, login, the two-factor handshake, and
// token refresh.
type AuthService struct {
	Store   store.Store
	Codec   *jwtx.Codec
	TOTP    *totp.Engine
	Secrets *cryptox.SecretCipher
	Mailer  Mailer

	// BackupTokenCount overrides DefaultBackupTokenCount when positive.
	BackupTokenCount int
}

// SignupRequest carries the new-account fields. When EnableTFA is set,
// DeviceType must name the second-factor delivery method.
type SignupRequest struct {
	Email      string
	FullName   string
	Password   string
	EnableTFA  bool
	DeviceType domain.DeviceType
}

// SignupResult returns the created user plus, for code-generator devices,
// the otpauth provisioning URI the client renders as a QR code.
type SignupResult struct {
	User          domain.User
	EnrollmentURI string
}

// LoginResult is one of two shapes: a full token pair when the account has
// no second factor, or a pending challenge carrying only the pre-TFA token.
type LoginResult struct {
	Pair    *domain.TokenPair
	Pending *domain.PendingTFA
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (SignupResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return SignupResult{}, fmt.Errorf("%w: email", ErrValidation)
	}
	if req.Password == "" {
		return SignupResult{}, fmt.Errorf("%w: password", ErrValidation)
	}
	if req.EnableTFA && !req.DeviceType.Valid() {
		return SignupResult{}, fmt.Errorf("%w: device type required to enable two-factor auth", ErrValidation)
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return SignupResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		TFAEnabled:   req.EnableTFA,
	}

	var enrollment enrollmentResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if !req.EnableTFA {
			return nil
		}
		var err error
		enrollment, err = s.createDeviceWithTokens(ctx, tx, user, req.DeviceType)
		return err
	})
	if err != nil {
		return SignupResult{}, err
	}

	if req.EnableTFA {
		s.dispatchBackupTokens(ctx, user.Email, enrollment.backupCodes)
	}

	return SignupResult{User: user, EnrollmentURI: enrollment.uri}, nil
}

// Login verifies the primary factor. Unknown email and wrong password are
// indistinguishable to the caller. Accounts with two-factor enabled get a
// pre-TFA token instead of a session; email devices additionally receive
// the current one-time code in their inbox.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so the response doesn't reveal
			// whether the account exists.
			_ = cryptox.VerifyPassword(password, dummyHash())
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.TFAEnabled {
		pair, err := s.mintPair(user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Pair: &pair}, nil
	}

	preToken, err := s.Codec.Mint(jwtx.DomainPreTFA, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("mint pre-tfa token: %w", err)
	}

	s.maybeEmailCode(ctx, user)

	return LoginResult{Pending: &domain.PendingTFA{
		PreTFAToken: preToken,
		TokenType:   "pre_tfa",
		ExpiresIn:   int64(s.Codec.TTL(jwtx.DomainPreTFA) / time.Second),
	}}, nil
}

// Refresh exchanges a live refresh token for a brand new pair. The subject
// must still exist; tokens for deleted accounts die here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	userID, err := s.verifyToken(jwtx.DomainRefresh, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrUserNotFound
		}
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	return s.mintPair(userID)
}

// Me resolves an access token's subject to the stored user.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// AccessVerifier exposes the access-domain check for authn middleware.
func (s *AuthService) AccessVerifier() jwtx.DomainVerifier {
	return jwtx.DomainVerifier{Codec: s.Codec, Domain: jwtx.DomainAccess}
}

func (s *AuthService) mintPair(userID string) (domain.TokenPair, error) {
	access, err := s.Codec.Mint(jwtx.DomainAccess, userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.Codec.Mint(jwtx.DomainRefresh, userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("mint refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.Codec.TTL(jwtx.DomainAccess) / time.Second),
	}, nil
}

// verifyToken maps codec failures onto the service error taxonomy.
func (s *AuthService) verifyToken(d jwtx.Domain, token string) (string, error) {
	userID, err := s.Codec.Verify(d, token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	return userID, nil
}

// maybeEmailCode sends the current TOTP code to email devices during the
// pending-TFA step. Failures are logged, never propagated: the challenge
// stands regardless of mail delivery.
func (s *AuthService) maybeEmailCode(ctx context.Context, user domain.User) {
	log := slogx.FromContext(ctx)

	device, err := s.Store.Devices().GetDeviceByUserID(ctx, user.ID)
	if err != nil {
		log.Error("pending tfa: device lookup failed", "user_id", user.ID, "error", err)
		return
	}
	if device.Type != domain.DeviceTypeEmail {
		return
	}

	secret, err := s.Secrets.Decrypt(device.SecretKey)
	if err != nil {
		log.Error("pending tfa: unseal device secret failed", "user_id", user.ID, "error", err)
		return
	}
	code, err := s.TOTP.Code(secret, time.Now())
	if err != nil {
		log.Error("pending tfa: derive code failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.Mailer.SendTOTPCode(ctx, user.Email, code); err != nil {
		log.Error("pending tfa: enqueue code email failed", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) dispatchBackupTokens(ctx context.Context, email string, codes []string) {
	if err := s.Mailer.SendBackupTokens(ctx, email, codes); err != nil {
		slogx.FromContext(ctx).Error("enqueue backup token email failed", "error", err)
	}
}

// dummyHash is a valid argon2id encoding of an unguessable value, used to
// equalize login timing when the email is unknown. Lazy because hashing
// depends on the pepper file configured at startup.
var dummyHash = sync.OnceValue(func() string {
	h, err := cryptox.HashPassword(idx.New().String())
	if err != nil {
		panic(err)
	}
	return h
})
