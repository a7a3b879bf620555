package http

import (
	"encoding/json"
	"net/http"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/pkg/httpx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
)

// AuthHandler serves the primary-factor endpoints: signup, login, token
// refresh, and the authenticated account view.
type AuthHandler struct {
	AuthService *service.AuthService
}

type signupRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Password   string `json:"password"`
	EnableTFA  bool   `json:"enable_tfa"`
	DeviceType string `json:"device_type,omitempty"`
}

type signupResponse struct {
	User          userResponse `json:"user"`
	EnrollmentURI string       `json:"enrollment_uri,omitempty"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	TFAEnabled bool   `json:"tfa_enabled"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		TFAEnabled: u.TFAEnabled,
	}
}

// HandleSignup handles POST /v1/auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.AuthService.Signup(ctx, service.SignupRequest{
		Email:      req.Email,
		FullName:   req.FullName,
		Password:   req.Password,
		EnableTFA:  req.EnableTFA,
		DeviceType: domain.DeviceType(req.DeviceType),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("user signed up", "user_id", res.User.ID, "tfa", res.User.TFAEnabled)
	httpx.WriteJSON(w, http.StatusCreated, signupResponse{
		User:          toUserResponse(res.User),
		EnrollmentURI: res.EnrollmentURI,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /v1/auth/login. Accounts with a second factor
// get 202 and a pre-TFA token; everyone else gets the pair directly.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.Pending != nil {
		log.Info("login pending second factor")
		httpx.WriteJSON(w, http.StatusAccepted, res.Pending)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res.Pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh handles POST /v1/auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	pair, err := h.AuthService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleMe handles GET /v1/auth/me (access-token protected).
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing authenticated subject")
		return
	}

	user, err := h.AuthService.Me(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
