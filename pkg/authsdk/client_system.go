package authsdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/parish/pkg/jwtx"
)

func getJSON[T any](ctx context.Context, c *SDKClient, path string) (*T, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLiveness calls GET /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "/livez")
}

// GetReadiness calls GET /readyz. A 503 is returned as an *APIError.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "/readyz")
}

// GetJWKS fetches the access-token verification keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	return getJSON[JWKSResponse](ctx, c, "/.well-known/jwks.json")
}

// NewVerifier builds a jwtx.Verifier loaded with the server's published
// keys, so a resource server can check access tokens without calling back.
func (c *SDKClient) NewVerifier(ctx context.Context, opts jwtx.VerifyOptions) (*jwtx.Verifier, error) {
	set, err := c.GetJWKS(ctx)
	if err != nil {
		return nil, err
	}
	v := jwtx.NewVerifier(opts)
	n, err := v.AddJWKS(jwtx.JWKS(*set))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("authsdk: jwks has no usable keys")
	}
	return v, nil
}
