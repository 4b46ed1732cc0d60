package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// LoginHandler serves the session endpoints: login, two-factor completion,
// refresh and logout.
type LoginHandler struct {
	responder
	LoginService *service.LoginService
}

// HandleLogin handles POST /v1/auth/login. Gates come back as 200 with
// requiresEmailVerification or requiresOtp set; only a failed credential
// check is an error.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	res, err := h.LoginService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleTwoFactor handles POST /v1/auth/login/2fa, the only endpoint that
// turns a two-factor challenge into tokens.
func (h *LoginHandler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ChallengeToken == "" {
		h.invalid(w, r, err)
		return
	}

	res, err := h.LoginService.CompleteTwoFactor(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleRefresh handles POST /v1/auth/refresh.
func (h *LoginHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		h.invalid(w, r, err)
		return
	}

	res, err := h.LoginService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleLogout handles POST /v1/auth/logout. Unknown tokens still get 200
// so the endpoint cannot be used to test whether a token is live.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		h.invalid(w, r, err)
		return
	}

	revoked, err := h.LoginService.Logout(ctx, req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !revoked {
		slogx.FromContext(ctx).Debug("logout with unknown refresh token")
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "login.logged_out")})
}

// HandleLogoutAll handles POST /v1/auth/logout/all for the bearer's user.
func (h *LoginHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.LoginService.LogoutAll(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(r.Context(), "login.logged_out")})
}

func toLoginResponse(res service.LoginResult) authsdk.LoginResponse {
	switch v := res.(type) {
	case *service.EmailVerificationRequired:
		return authsdk.LoginResponse{
			RequiresEmailVerification: true,
			UserID:                    v.UserID.String(),
			Email:                     v.Email,
			Message:                   v.Message,
		}
	case *service.OtpRequired:
		return authsdk.LoginResponse{
			RequiresOtp:    true,
			UserID:         v.UserID.String(),
			ChallengeToken: v.ChallengeToken,
			ExpiresIn:      v.ExpiresIn,
			Message:        v.Message,
		}
	case *service.LoginSuccess:
		profile := toProfile(v.User)
		return authsdk.LoginResponse{
			AccessToken:  v.AccessToken,
			RefreshToken: v.RefreshToken,
			ExpiresIn:    v.ExpiresIn,
			User:         &profile,
			Message:      v.Message,
		}
	default:
		return authsdk.LoginResponse{}
	}
}

func toProfile(p domain.UserProfile) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Active:           p.Active,
		TwoFactorEnabled: p.TwoFactorEnabled,
		Roles:            p.Roles,
		LastLoginAt:      p.LastLoginAt,
		CreatedAt:        p.CreatedAt,
	}
}
