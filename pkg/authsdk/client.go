package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a gatehouse instance. The zero HTTPClient gets a sane
// default timeout; pass your own to control transport behaviour.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Signup creates an account. The response carries the provisioning URI
// when a code-generator device was enrolled.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	var res SignupResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", "", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login performs the primary-factor check. For plain accounts the session
// is returned directly; for two-factor accounts the session is nil and the
// pending challenge must be completed with VerifyTFA or Recover.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, *PendingTFA, error) {
	body := map[string]string{"email": email, "password": password}

	resp, payload, err := c.roundTrip(ctx, http.MethodPost, "/v1/auth/login", "", body)
	if err != nil {
		return nil, nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var pair TokenPair
		if err := json.Unmarshal(payload, &pair); err != nil {
			return nil, nil, fmt.Errorf("authsdk: decode token pair: %w", err)
		}
		return c.newSession(pair), nil, nil
	case http.StatusAccepted:
		var pending PendingTFA
		if err := json.Unmarshal(payload, &pending); err != nil {
			return nil, nil, fmt.Errorf("authsdk: decode pending challenge: %w", err)
		}
		return nil, &pending, nil
	default:
		return nil, nil, decodeAPIError(resp.StatusCode, payload)
	}
}

// VerifyTFA completes a pending challenge with a TOTP code.
func (c *Client) VerifyTFA(ctx context.Context, preTFAToken, code string) (*Session, error) {
	body := map[string]string{"pre_tfa_token": preTFAToken, "code": code}

	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/v1/tfa/verify", "", body, &pair); err != nil {
		return nil, err
	}
	return c.newSession(pair), nil
}

// Recover completes a pending challenge with a single-use backup token.
func (c *Client) Recover(ctx context.Context, preTFAToken, backupToken string) (*Session, error) {
	body := map[string]string{"pre_tfa_token": preTFAToken, "backup_token": backupToken}

	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/v1/tfa/recover", "", body, &pair); err != nil {
		return nil, err
	}
	return c.newSession(pair), nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", "", body, &pair); err != nil {
		return nil, err
	}
	return c.newSession(pair), nil
}

// Livez reports process liveness.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	var res HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", "", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Readyz reports readiness, including dependency checks.
func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	var res HealthResponse
	if err := c.do(ctx, http.MethodGet, "/readyz", "", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do performs a round trip and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	resp, payload, err := c.roundTrip(ctx, method, path, bearer, in)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("authsdk: decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, bearer string, in any) (*http.Response, []byte, error) {
	var body *bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("authsdk: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("authsdk: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("authsdk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("authsdk: read response: %w", err)
	}
	return resp, payload, nil
}

func decodeAPIError(status int, payload []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(payload, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = ErrorCodeServerError
		apiErr.Description = strings.TrimSpace(string(payload))
	}
	return apiErr
}
