package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	authhttp "github.com/paddockhq/gatehouse/internal/auth/http"
	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/paddockhq/gatehouse/pkg/cryptox"
	"github.com/paddockhq/gatehouse/pkg/jwtx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
	"github.com/paddockhq/gatehouse/pkg/totp"
	"github.com/stretchr/testify/require"
)

type nullMailer struct {
	backupBatches [][]string
	totpCodes     []string
}

func (m *nullMailer) SendTOTPCode(ctx context.Context, to string, code string) error {
	m.totpCodes = append(m.totpCodes, code)
	return nil
}

func (m *nullMailer) SendBackupTokens(ctx context.Context, to string, codes []string) error {
	m.backupBatches = append(m.backupBatches, codes)
	return nil
}

type testServer struct {
	srv    *httptest.Server
	store  *sqlite.Store
	mailer *nullMailer
	cipher *cryptox.SecretCipher
	engine *totp.Engine
	client *http.Client
	reqNum int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.New(jwtx.Config{
		Issuer:        "gatehouse-test",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		PreTFASecret:  []byte("pre-tfa-secret"),
	})
	require.NoError(t, err)

	cipher, err := cryptox.NewSecretCipher([]byte("master-key-material"))
	require.NoError(t, err)

	engine := &totp.Engine{Issuer: "gatehouse-test"}
	mailer := &nullMailer{}

	svc := &service.AuthService{
		Store:   st,
		Codec:   codec,
		TOTP:    engine,
		Secrets: cipher,
		Mailer:  mailer,
	}

	logger := slogx.New(slogx.Config{Service: "gatehouse", Level: "error", Format: "text"})
	router := authhttp.NewRouter("test", st, svc, logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:    srv,
		store:  st,
		mailer: mailer,
		cipher: cipher,
		engine: engine,
		client: srv.Client(),
	}
}

// do sends a request with a unique forwarded IP per call so per-IP rate
// limits never interfere across test steps.
func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	ts.reqNum++
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.%d.%d", ts.reqNum/250, ts.reqNum%250))

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, payload
}

func decode[T any](t *testing.T, payload []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(payload, &v))
	return v
}

type pairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type pendingBody struct {
	PreTFAToken string `json:"pre_tfa_token"`
	TokenType   string `json:"token_type"`
}

type signupBody struct {
	User struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		TFAEnabled bool   `json:"tfa_enabled"`
	} `json:"user"`
	EnrollmentURI string `json:"enrollment_uri"`
}

func (ts *testServer) signup(t *testing.T, email string, tfa bool, deviceType string) signupBody {
	t.Helper()
	resp, payload := ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":       email,
		"full_name":   "Test User",
		"password":    "hunter2-but-longer",
		"enable_tfa":  tfa,
		"device_type": deviceType,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(payload))
	return decode[signupBody](t, payload)
}

func TestSignupEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("creates account", func(t *testing.T) {
		body := ts.signup(t, "alice@example.com", false, "")
		require.Equal(t, "alice@example.com", body.User.Email)
		require.False(t, body.User.TFAEnabled)
		require.Empty(t, body.EnrollmentURI)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]any{
			"email":    "alice@example.com",
			"password": "another-password",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Contains(t, string(payload), "email_taken")
	})

	t.Run("tfa signup returns provisioning URI", func(t *testing.T) {
		body := ts.signup(t, "dave@example.com", true, "code_generator")
		require.True(t, body.User.TFAEnabled)
		require.Contains(t, body.EnrollmentURI, "otpauth://totp/")
	})

	t.Run("tfa without device type rejected", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]any{
			"email":      "carol@example.com",
			"password":   "some-password",
			"enable_tfa": true,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/v1/auth/signup", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "10.9.9.9")
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice@example.com", false, "")
	ts.signup(t, "dave@example.com", true, "code_generator")

	t.Run("plain account gets a pair", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "hunter2-but-longer",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		pair := decode[pairBody](t, payload)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "bearer", pair.TokenType)
	})

	t.Run("tfa account gets 202 with a pre-tfa token", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "dave@example.com",
			"password": "hunter2-but-longer",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		pending := decode[pendingBody](t, payload)
		require.NotEmpty(t, pending.PreTFAToken)
		require.Equal(t, "pre_tfa", pending.TokenType)
	})

	t.Run("bad password and unknown email both 401", func(t *testing.T) {
		for _, creds := range []map[string]string{
			{"email": "alice@example.com", "password": "wrong"},
			{"email": "ghost@example.com", "password": "whatever"},
		} {
			resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", creds)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.Contains(t, string(payload), "invalid_credentials")
		}
	})
}

func TestTFAEndpoints(t *testing.T) {
	ts := newTestServer(t)
	signupRes := ts.signup(t, "dave@example.com", true, "code_generator")

	login := func(t *testing.T) string {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "dave@example.com",
			"password": "hunter2-but-longer",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		return decode[pendingBody](t, payload).PreTFAToken
	}

	currentCode := func(t *testing.T) string {
		device, err := ts.store.Devices().GetDeviceByUserID(context.Background(), signupRes.User.ID)
		require.NoError(t, err)
		secret, err := ts.cipher.Decrypt(device.SecretKey)
		require.NoError(t, err)
		code, err := ts.engine.Code(secret, time.Now())
		require.NoError(t, err)
		return code
	}

	t.Run("verify completes the handshake", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/verify", "", map[string]string{
			"pre_tfa_token": login(t),
			"code":          currentCode(t),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(payload))

		pair := decode[pairBody](t, payload)
		require.NotEmpty(t, pair.AccessToken)
	})

	t.Run("wrong code forbidden", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/verify", "", map[string]string{
			"pre_tfa_token": login(t),
			"code":          "000000",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Contains(t, string(payload), "code_mismatch")
	})

	t.Run("access token rejected as pre-tfa token", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/verify", "", map[string]string{
			"pre_tfa_token": login(t),
			"code":          currentCode(t),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		pair := decode[pairBody](t, payload)

		resp, payload = ts.do(t, http.MethodPost, "/v1/tfa/verify", "", map[string]string{
			"pre_tfa_token": pair.AccessToken,
			"code":          currentCode(t),
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(payload), "invalid_token")
	})

	t.Run("recover consumes a backup token once", func(t *testing.T) {
		require.NotEmpty(t, ts.mailer.backupBatches)
		code := ts.mailer.backupBatches[0][0]

		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/recover", "", map[string]string{
			"pre_tfa_token": login(t),
			"backup_token":  code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(payload))

		resp, payload = ts.do(t, http.MethodPost, "/v1/tfa/recover", "", map[string]string{
			"pre_tfa_token": login(t),
			"backup_token":  code,
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Contains(t, string(payload), "code_mismatch")
	})

	t.Run("exhausted batch reports 404", func(t *testing.T) {
		batch := ts.mailer.backupBatches[0]
		for _, code := range batch[1:] {
			resp, _ := ts.do(t, http.MethodPost, "/v1/tfa/recover", "", map[string]string{
				"pre_tfa_token": login(t),
				"backup_token":  code,
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/recover", "", map[string]string{
			"pre_tfa_token": login(t),
			"backup_token":  batch[0],
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Contains(t, string(payload), "backup_tokens_exhausted")
	})
}

func TestRefreshEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice@example.com", false, "")

	resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2-but-longer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[pairBody](t, payload)

	t.Run("refresh token exchanges for a new pair", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		fresh := decode[pairBody](t, payload)
		require.NotEmpty(t, fresh.AccessToken)
		require.NotEmpty(t, fresh.RefreshToken)
	})

	t.Run("access token rejected at refresh", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": pair.AccessToken,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(payload), "invalid_token")
	})
}

func TestProtectedEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice@example.com", false, "")

	resp, payload := ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2-but-longer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[pairBody](t, payload)

	t.Run("me returns the account", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodGet, "/v1/auth/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(payload), "alice@example.com")
	})

	t.Run("me without a token is 401", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/v1/auth/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("refresh token rejected as bearer", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/v1/auth/me", pair.RefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("enable then qrcode", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/enable", pair.AccessToken, map[string]string{
			"device_type": "code_generator",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(payload))
		enabled := decode[signupBody](t, payload)
		require.True(t, enabled.User.TFAEnabled)
		require.Contains(t, enabled.EnrollmentURI, "otpauth://totp/")

		resp, payload = ts.do(t, http.MethodGet, "/v1/tfa/qrcode", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, enabled.EnrollmentURI, decode[map[string]string](t, payload)["uri"])
	})

	t.Run("double enable conflicts", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodPost, "/v1/tfa/enable", pair.AccessToken, map[string]string{
			"device_type": "email",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Contains(t, string(payload), "tfa_already_enabled")
	})
}

func TestSystemEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("livez", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodGet, "/livez", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(payload), `"status":"ok"`)
	})

	t.Run("readyz", func(t *testing.T) {
		resp, payload := ts.do(t, http.MethodGet, "/readyz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(payload), `"database":"ok"`)
	})
}
