package authsdk

import (
	"context"
	"net/http"
)

// Session is an authenticated client: a Client plus the token pair from a
// completed login. Methods attach the access token automatically.
type Session struct {
	client *Client
	pair   TokenPair
}

func (c *Client) newSession(pair TokenPair) *Session {
	return &Session{client: c, pair: pair}
}

// Tokens returns the underlying pair, e.g. to persist across restarts.
func (s *Session) Tokens() TokenPair {
	return s.pair
}

// Me fetches the authenticated account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.do(ctx, http.MethodGet, "/v1/auth/me", s.pair.AccessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// EnableTFA enrolls a second factor on the session's account. The backup
// tokens are emailed, not returned.
func (s *Session) EnableTFA(ctx context.Context, deviceType string) (*SignupResponse, error) {
	body := map[string]string{"device_type": deviceType}

	var res SignupResponse
	if err := s.client.do(ctx, http.MethodPost, "/v1/tfa/enable", s.pair.AccessToken, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// EnrollmentQR fetches the otpauth provisioning URI for the account's
// code-generator device.
func (s *Session) EnrollmentQR(ctx context.Context) (string, error) {
	var res QRCodeResponse
	if err := s.client.do(ctx, http.MethodGet, "/v1/tfa/qrcode", s.pair.AccessToken, nil, &res); err != nil {
		return "", err
	}
	return res.URI, nil
}

// Refresh replaces the session's tokens using its refresh token.
func (s *Session) Refresh(ctx context.Context) error {
	fresh, err := s.client.Refresh(ctx, s.pair.RefreshToken)
	if err != nil {
		return err
	}
	s.pair = fresh.pair
	return nil
}
