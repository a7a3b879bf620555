package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/internal/auth/store"
	"github.com/paddockhq/gatehouse/pkg/httpx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	AuthService *service.AuthService
}

func NewRouter(buildVersion string, st store.Store, svc *service.AuthService, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		AuthService:  svc,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}
	verifier := r.AuthService.AccessVerifier()

	// POST /signup - strict rate limit by IP (account creation)
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /login - strict rate limit by IP (credential guessing)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /me - access-token protected, lenient limit
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(verifier),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerTFA() {
	h := &TFAHandler{AuthService: r.AuthService}
	verifier := r.AuthService.AccessVerifier()

	// POST /verify - strict rate limit (prevents brute forcing TOTP codes)
	r.Mux.Handle("POST /v1/tfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /recover - strict rate limit (prevents brute forcing backup tokens)
	r.Mux.Handle("POST /v1/tfa/recover",
		httpx.Chain(http.HandlerFunc(h.HandleRecover),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /enable - access-token protected, moderate limit
	r.Mux.Handle("POST /v1/tfa/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			httpx.AuthnMiddleware(verifier),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /qrcode - access-token protected, moderate limit
	r.Mux.Handle("GET /v1/tfa/qrcode",
		httpx.Chain(http.HandlerFunc(h.HandleQRCode),
			httpx.AuthnMiddleware(verifier),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
