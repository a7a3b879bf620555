package http

import (
	"encoding/json"
	"net/http"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/pkg/httpx"
	"github.com/paddockhq/gatehouse/pkg/slogx"
)

// TFAHandler serves the second-factor endpoints: challenge verification,
// backup-token recovery, enrollment, and provisioning URI retrieval.
type TFAHandler struct {
	AuthService *service.AuthService
}

type tfaVerifyRequest struct {
	PreTFAToken string `json:"pre_tfa_token"`
	Code        string `json:"code"`
}

// HandleVerify handles POST /v1/tfa/verify.
func (h *TFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tfaVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	pair, err := h.AuthService.VerifyTFA(ctx, req.PreTFAToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("second factor verified")
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type tfaRecoverRequest struct {
	PreTFAToken string `json:"pre_tfa_token"`
	BackupToken string `json:"backup_token"`
}

// HandleRecover handles POST /v1/tfa/recover.
func (h *TFAHandler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tfaRecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	pair, err := h.AuthService.RecoverWithBackupToken(ctx, req.PreTFAToken, req.BackupToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("account recovered with backup token")
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type tfaEnableRequest struct {
	DeviceType string `json:"device_type"`
}

// HandleEnable handles POST /v1/tfa/enable (access-token protected).
func (h *TFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing authenticated subject")
		return
	}

	var req tfaEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.AuthService.EnableTFA(ctx, userID, domain.DeviceType(req.DeviceType))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("two-factor authentication enabled", "user_id", userID, "device_type", req.DeviceType)
	httpx.WriteJSON(w, http.StatusOK, signupResponse{
		User:          toUserResponse(res.User),
		EnrollmentURI: res.EnrollmentURI,
	})
}

type qrcodeResponse struct {
	URI string `json:"uri"`
}

// HandleQRCode handles GET /v1/tfa/qrcode (access-token protected). The
// client renders the returned otpauth URI as a QR image.
func (h *TFAHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing authenticated subject")
		return
	}

	uri, err := h.AuthService.EnrollmentQR(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, qrcodeResponse{URI: uri})
}
