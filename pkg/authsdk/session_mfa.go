package authsdk

import (
	"context"
	"net/http"
)

// SetupTwoFactor creates the user's permanent TOTP secret and enables
// two-factor login. The secret is only ever returned here.
func (s *Session) SetupTwoFactor(ctx context.Context) (*TwoFactorSetupResponse, error) {
	return sessionCall[TwoFactorSetupResponse](ctx, s, http.MethodPost, "/v1/auth/2fa/setup", nil)
}

// VerifyTwoFactor checks a code from the authenticator app. Each code is
// accepted once.
func (s *Session) VerifyTwoFactor(ctx context.Context, code string) (*VerifyResponse, error) {
	return sessionCall[VerifyResponse](ctx, s, http.MethodPost, "/v1/auth/2fa/verify", CodeRequest{Code: code})
}

// DisableTwoFactor removes the permanent secret. code must be a current,
// unused code from the authenticator app.
func (s *Session) DisableTwoFactor(ctx context.Context, code string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/auth/2fa/disable", CodeRequest{Code: code})
}
