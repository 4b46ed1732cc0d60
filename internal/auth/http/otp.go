package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

// OtpHandler serves emailed login codes for a login stopped at the
// two-factor gate. Both endpoints take the challenge token from the login
// response; a user id is never enough.
type OtpHandler struct {
	responder
	LoginService *service.LoginService
}

// HandleRequest handles POST /v1/auth/otp/request. The code goes out
// through the notifier, never in the response.
func (h *OtpHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.OtpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ChallengeToken == "" {
		h.invalid(w, r, err)
		return
	}

	if err := h.LoginService.SendChallengeOtp(r.Context(), req.ChallengeToken); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{Message: h.t(r.Context(), "otp.sent")})
}

// HandleVerify handles POST /v1/auth/otp/verify. It only reports whether the
// code is right; the code stays usable for POST /v1/auth/login/2fa.
func (h *OtpHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.OtpVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ChallengeToken == "" {
		h.invalid(w, r, err)
		return
	}

	if err := h.LoginService.CheckChallengeOtp(r.Context(), req.ChallengeToken, req.Code); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResponse{Valid: true, Message: h.t(r.Context(), "otp.verified")})
}
