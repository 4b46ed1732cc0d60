package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// Register creates an account. The service emails a verification code to
// the new address; the account cannot log in until it is verified.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	return clientCall[UserProfile](ctx, c, http.MethodPost, "/v1/auth/register", req, http.StatusCreated)
}

// ForgotPassword starts a password reset. The answer is the same whether or
// not the address has an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	return clientCall[MessageResponse](ctx, c, http.MethodPost, "/v1/auth/password/forgot",
		EmailRequest{Email: email}, http.StatusAccepted)
}

// ResetPassword sets a new password with the token from the reset email.
func (c *SDKClient) ResetPassword(ctx context.Context, token, password string) (*MessageResponse, error) {
	return clientCall[MessageResponse](ctx, c, http.MethodPost, "/v1/auth/password/reset",
		PasswordResetRequest{Token: token, Password: password}, http.StatusOK)
}

// Bootstrap seeds the roles and the first administrator on an empty
// deployment. token must match the service's configured bootstrap token.
func (c *SDKClient) Bootstrap(ctx context.Context, token string, req BootstrapRequest) (*BootstrapResponse, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/bootstrap", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(BootstrapTokenHeader, token)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	var out BootstrapResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}
