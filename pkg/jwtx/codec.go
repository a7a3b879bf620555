package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Domain selects one of the independent signing domains. A token minted
// under one domain must never verify under another: each domain carries its
// own secret and expiry policy.
type Domain int

const (
	// DomainAccess is for short-lived API bearer tokens.
	DomainAccess Domain = iota

	// DomainRefresh is for the long-lived tokens exchanged for fresh pairs.
	DomainRefresh

	// DomainPreTFA is for the very short-lived credential minted after a
	// correct password when the second factor is still outstanding.
	DomainPreTFA
)

func (d Domain) String() string {
	switch d {
	case DomainAccess:
		return "access"
	case DomainRefresh:
		return "refresh"
	case DomainPreTFA:
		return "pre_tfa"
	default:
		return "unknown"
	}
}

// Default TTLs per domain. Access tokens are short, refresh tokens span a
// day, and the pre-TFA window is deliberately tight: it only needs to cover
// the time it takes a user to type a six digit code.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
	DefaultPreTFATTL  = 2 * time.Minute
)

var (
	// ErrInvalid reports a malformed token, a bad signature, or a token
	// presented under the wrong domain.
	ErrInvalid = errors.New("jwtx: invalid token")

	// ErrExpired reports a structurally valid token past its expiry instant.
	ErrExpired = errors.New("jwtx: token expired")
)

// Config carries the per-domain secrets and lifetimes. All three secrets are
// required and should be independent random values; zero TTLs fall back to
// the package defaults.
type Config struct {
	Issuer string

	AccessSecret  []byte
	RefreshSecret []byte
	PreTFASecret  []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PreTFATTL  time.Duration
}

// Codec mints and verifies signed bearer tokens. Validity is purely a
// function of signature and expiry; there is no server-side revocation.
type Codec struct {
	cfg Config
}

// New validates cfg and returns a Codec. Missing secrets are a hard error:
// an empty HMAC key would make every signature forgeable.
func New(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.PreTFASecret) == 0 {
		return nil, errors.New("jwtx: all three domain secrets are required")
	}

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.PreTFATTL == 0 {
		cfg.PreTFATTL = DefaultPreTFATTL
	}

	return &Codec{cfg: cfg}, nil
}

// Mint signs a token for subject under the given domain. Claims are the
// minimal set: subject, issuer, issued-at and the domain's expiry.
func (c *Codec) Mint(d Domain, subject string) (string, error) {
	secret, ttl, err := c.domain(d)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    c.cfg.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign %s token: %w", d, err)
	}
	return signed, nil
}

// Verify checks signature and expiry under the given domain and returns the
// embedded subject. A token minted under any other domain fails with
// ErrInvalid because the HMAC secret differs.
func (c *Codec) Verify(d Domain, token string) (string, error) {
	secret, _, err := c.domain(d)
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}

	if claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// TTL reports the configured lifetime for a domain. Handlers use this to
// fill expires_in style response fields.
func (c *Codec) TTL(d Domain) time.Duration {
	_, ttl, err := c.domain(d)
	if err != nil {
		return 0
	}
	return ttl
}

func (c *Codec) domain(d Domain) ([]byte, time.Duration, error) {
	switch d {
	case DomainAccess:
		return c.cfg.AccessSecret, c.cfg.AccessTTL, nil
	case DomainRefresh:
		return c.cfg.RefreshSecret, c.cfg.RefreshTTL, nil
	case DomainPreTFA:
		return c.cfg.PreTFASecret, c.cfg.PreTFATTL, nil
	default:
		return nil, 0, fmt.Errorf("jwtx: unknown domain %d", d)
	}
}

// DomainVerifier adapts one domain of a Codec to the single-method Verifier
// shape the HTTP middleware consumes.
type DomainVerifier struct {
	Codec  *Codec
	Domain Domain
}

func (v DomainVerifier) Verify(token string) (string, error) {
	return v.Codec.Verify(v.Domain, token)
}
