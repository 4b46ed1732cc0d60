package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
)

// TokenPair is an access token plus the opaque refresh token issued with it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenIssuer mints a token pair in one call.
type TokenIssuer interface {
	Issue(ctx context.Context, u *domain.User, permissions []string, emailVerified bool) (TokenPair, error)
}

// JWTIssuer signs EdDSA access tokens and takes refresh tokens from Auth,
// which enforces one live refresh token per user.
type JWTIssuer struct {
	Signer    *jwtx.Signer
	Auth      *AuthService
	Clock     Clock
	Issuer    string
	Audience  []string
	AccessTTL time.Duration
}

func (i *JWTIssuer) Issue(ctx context.Context, u *domain.User, permissions []string, emailVerified bool) (TokenPair, error) {
	rt, err := i.Auth.CreateRefreshToken(ctx, u.ID)
	if err != nil {
		return TokenPair{}, err
	}

	ttl := i.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	now := time.Now().UTC()
	if i.Clock != nil {
		now = i.Clock.Now()
	}

	amr := []string{"pwd"}
	if u.TwoFactorEnabled {
		amr = append(amr, "otp")
	}

	claims := jwtx.NewAccessClaims(jwtx.AccessClaims{
		Subject:       u.ID.String(),
		SID:           rt.ID.String(),
		Email:         u.Email.String(),
		Permissions:   permissions,
		Roles:         u.RoleNames(),
		EmailVerified: emailVerified,
		AMR:           amr,
		Issuer:        i.Issuer,
		Audience:      i.Audience,
		TTL:           ttl,
	}, now)

	access, err := i.Signer.Sign(claims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: rt.Token, ExpiresIn: ttl}, nil
}
