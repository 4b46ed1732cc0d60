package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// AccountHandler serves self-service registration and credential changes.
type AccountHandler struct {
	responder
	UserService *service.UserService
	AuthService *service.AuthService
}

// HandleRegister handles POST /v1/auth/register. A verification code is
// sent to the new address straight away.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	u, err := h.UserService.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The account exists either way; the client can ask for another code.
	if err := h.AuthService.SendEmailVerification(ctx, u.Email.String()); err != nil {
		slogx.FromContext(ctx).Error("send verification after register", "err", err)
	}

	httpx.WriteJSON(w, http.StatusCreated, toProfile(u.Profile()))
}

// HandleForgot handles POST /v1/auth/password/forgot. The answer is the
// same whether or not the address is registered.
func (h *AccountHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	if _, err := h.UserService.RequestPasswordReset(ctx, req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{
		Message: h.t(ctx, "password.reset_sent"),
	})
}

// HandleReset handles POST /v1/auth/password/reset.
func (h *AccountHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.PasswordResetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		h.invalid(w, r, err)
		return
	}

	if err := h.UserService.ResetPassword(ctx, req.Token, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "password.reset")})
}

// HandleChangePassword handles POST /v1/auth/password/change. Every
// session of the user is revoked once the new password is stored.
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req authsdk.PasswordChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	if err := h.UserService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "password.changed")})
}

// HandleChangeEmail handles POST /v1/auth/email/change. The new address
// starts unverified and receives a verification code.
func (h *AccountHandler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	if err := h.UserService.ChangeEmail(ctx, userID, req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.AuthService.SendEmailVerification(ctx, req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "email.changed")})
}
