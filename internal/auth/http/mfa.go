package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// TwoFactorHandler manages the authenticated user's permanent TOTP secret.
type TwoFactorHandler struct {
	responder
	AuthService *service.AuthService
}

// HandleSetup handles POST /v1/auth/2fa/setup.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	setup, err := h.AuthService.Setup2FA(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("two-factor enabled")
	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorSetupResponse{
		Secret:     setup.Secret,
		OtpAuthURL: setup.URL,
		QRCode:     setup.QRCode,
		Message:    h.t(ctx, "twofactor.enabled"),
	})
}

// HandleVerify handles POST /v1/auth/2fa/verify.
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req authsdk.CodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	valid, err := h.AuthService.Verify2FA(ctx, userID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !valid {
		h.fail(w, r, domain.ErrOtpInvalid)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResponse{Valid: true, Message: h.t(ctx, "otp.verified")})
}

// HandleDisable handles POST /v1/auth/2fa/disable. The body carries a
// current authenticator code.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req authsdk.CodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Code == "" {
		h.invalid(w, r, err)
		return
	}

	if err := h.AuthService.Disable2FA(ctx, userID, req.Code); err != nil {
		h.fail(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("two-factor disabled")
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "twofactor.disabled")})
}
