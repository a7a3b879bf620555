package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	authhttp "github.com/paddockhq/gatehouse/internal/auth/http"
	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/paddockhq/gatehouse/pkg/authsdk"
	"github.com/paddockhq/gatehouse/pkg/cryptox"
	"github.com/paddockhq/gatehouse/pkg/jwtx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
	"github.com/paddockhq/gatehouse/pkg/totp"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

// recordingMailer captures outbound mail so the flows that normally read
// their inbox (backup tokens, emailed codes) can be driven from tests.
type recordingMailer struct {
	mu            sync.Mutex
	backupBatches [][]string
	totpCodes     []string
}

func (m *recordingMailer) SendTOTPCode(ctx context.Context, to string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totpCodes = append(m.totpCodes, code)
	return nil
}

func (m *recordingMailer) SendBackupTokens(ctx context.Context, to string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backupBatches = append(m.backupBatches, codes)
	return nil
}

func (m *recordingMailer) lastTOTPCode() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.totpCodes) == 0 {
		return "", false
	}
	return m.totpCodes[len(m.totpCodes)-1], true
}

func (m *recordingMailer) backupCodes() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.backupBatches...)
}

// rotatingIPTransport stamps each request with a distinct forwarded address
// so the per-IP rate limiter never throttles the suite.
type rotatingIPTransport struct {
	next http.RoundTripper
	seq  atomic.Uint64
}

func (rt *rotatingIPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := rt.seq.Add(1)
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Forwarded-For", fmt.Sprintf("10.2.%d.%d", n/250, n%250+1))
	return rt.next.RoundTrip(clone)
}

// harness runs the full service in-process: real sqlite store, real codec,
// real router, with only mail delivery stubbed.
type harness struct {
	client *authsdk.Client
	store  *sqlite.Store
	mailer *recordingMailer
	cipher *cryptox.SecretCipher
	engine *totp.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.New(jwtx.Config{
		Issuer:        "gatehouse-e2e",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		PreTFASecret:  []byte("pre-tfa-secret"),
	})
	require.NoError(t, err)

	cipher, err := cryptox.NewSecretCipher([]byte("master-key-material"))
	require.NoError(t, err)

	engine := &totp.Engine{Issuer: "gatehouse-e2e"}
	mailer := &recordingMailer{}

	svc := &service.AuthService{
		Store:   st,
		Codec:   codec,
		TOTP:    engine,
		Secrets: cipher,
		Mailer:  mailer,
	}

	logger := slogx.New(slogx.Config{Service: "gatehouse", Level: "error", Format: "text"})
	router := authhttp.NewRouter("e2e", st, svc, logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := authsdk.NewClient(srv.URL)
	client.HTTPClient.Transport = &rotatingIPTransport{next: http.DefaultTransport}

	return &harness{
		client: client,
		store:  st,
		mailer: mailer,
		cipher: cipher,
		engine: engine,
	}
}

// currentCode derives the TOTP code the user's authenticator app would
// display right now.
func (h *harness) currentCode(t *testing.T, userID string) string {
	t.Helper()

	device, err := h.store.Devices().GetDeviceByUserID(context.Background(), userID)
	require.NoError(t, err)
	secret, err := h.cipher.Decrypt(device.SecretKey)
	require.NoError(t, err)
	code, err := h.engine.Code(secret, time.Now())
	require.NoError(t, err)
	return code
}
