package authsdk

import (
	"context"
	"net/http"
)

// Login starts the login flow with an email and password.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	return c.postLogin(ctx, "/v1/auth/login", LoginRequest{Email: email, Password: password})
}

// CompleteTwoFactor finishes a login that returned RequiresOtp, using the
// response's ChallengeToken and a code from the authenticator app or from
// RequestOtp. After five wrong codes the challenge is gone and the login
// has to start over.
func (c *SDKClient) CompleteTwoFactor(ctx context.Context, challengeToken, code string) (*LoginResponse, error) {
	return c.postLogin(ctx, "/v1/auth/login/2fa", TwoFactorLoginRequest{ChallengeToken: challengeToken, Code: code})
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token stops working.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	return c.postLogin(ctx, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// RequestOtp asks the service to email a one-time login code to the user
// behind a pending two-factor challenge.
func (c *SDKClient) RequestOtp(ctx context.Context, challengeToken string) (*MessageResponse, error) {
	return clientCall[MessageResponse](ctx, c, http.MethodPost, "/v1/auth/otp/request",
		OtpRequest{ChallengeToken: challengeToken}, http.StatusAccepted)
}

// VerifyOtp checks an emailed login code without spending it. The same code
// still has to be passed to CompleteTwoFactor to get tokens.
func (c *SDKClient) VerifyOtp(ctx context.Context, challengeToken, code string) (*VerifyResponse, error) {
	return clientCall[VerifyResponse](ctx, c, http.MethodPost, "/v1/auth/otp/verify",
		OtpVerifyRequest{ChallengeToken: challengeToken, Code: code}, http.StatusOK)
}

// SendEmailVerification asks the service to email a verification code.
func (c *SDKClient) SendEmailVerification(ctx context.Context, email string) (*MessageResponse, error) {
	return clientCall[MessageResponse](ctx, c, http.MethodPost, "/v1/auth/email/send",
		EmailRequest{Email: email}, http.StatusAccepted)
}

// VerifyEmail submits the emailed verification code.
func (c *SDKClient) VerifyEmail(ctx context.Context, email, code string) (*MessageResponse, error) {
	return clientCall[MessageResponse](ctx, c, http.MethodPost, "/v1/auth/email/verify",
		EmailVerifyRequest{Email: email, Code: code}, http.StatusOK)
}

func (c *SDKClient) postLogin(ctx context.Context, path string, body any) (*LoginResponse, error) {
	return clientCall[LoginResponse](ctx, c, http.MethodPost, path, body, http.StatusOK)
}
