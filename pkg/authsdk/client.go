package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNotAuthenticated is returned by AuthenticateWithPassword when the login
// stopped at a gate (email verification or second factor). The LoginResponse
// is still returned so the caller can continue the flow.
var ErrNotAuthenticated = errors.New("authsdk: login did not issue tokens")

// SDKClient is a client for the parish authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Language is sent as Accept-Language so messages come back localized.
	Language string
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthenticateWithPassword logs in and, when tokens are issued, wraps them
// in a Session. If a gate stops the login, the response is returned together
// with ErrNotAuthenticated.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, *LoginResponse, error) {
	resp, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	if !resp.Authenticated() {
		return nil, resp, ErrNotAuthenticated
	}
	return c.NewSession(resp), resp, nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return c.NewSession(resp), nil
}

// NewSession wraps tokens from a successful login-family response. The
// session refreshes its access token automatically.
func (c *SDKClient) NewSession(resp *LoginResponse) *Session {
	return newSession(c, resp)
}

// NewSessionFromTokens creates an authenticated session from stored tokens.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return newSession(c, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
