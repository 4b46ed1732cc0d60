package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

// EmailHandler serves email address verification.
type EmailHandler struct {
	responder
	AuthService *service.AuthService
}

// HandleSend handles POST /v1/auth/email/send.
func (h *EmailHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	if err := h.AuthService.SendEmailVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{
		Message: h.t(r.Context(), "email.verification_sent", email),
	})
}

// HandleVerify handles POST /v1/auth/email/verify.
func (h *EmailHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	if err := h.AuthService.VerifyEmailCode(r.Context(), req.Email, req.Code); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(r.Context(), "email.verified")})
}
