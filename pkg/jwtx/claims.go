package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the access-token claims issued after a successful login. Fields
// are additive so older tokens keep decoding.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID, the refresh-token row this access token was minted with.
	SID string `json:"sid,omitempty"`

	// Email of the authenticated user at issue time.
	Email string `json:"email,omitempty"`

	// Permissions is the flattened "resource:action" set across all roles.
	Permissions []string `json:"permissions,omitempty"`

	// Roles holds role names, informational only.
	Roles []string `json:"roles,omitempty"`

	// EmailVerified reports whether the email was verified at login time.
	EmailVerified bool `json:"email_verified"`

	// Authentication Methods Reference ["pwd","otp"]
	AMR []string `json:"amr,omitempty"`
}

// AccessClaims groups the inputs to NewAccessClaims.
type AccessClaims struct {
	Subject       string
	SID           string
	Email         string
	Permissions   []string
	Roles         []string
	EmailVerified bool
	AMR           []string
	Issuer        string
	Audience      []string
	TTL           time.Duration
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(in AccessClaims, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    in.Issuer,
			Subject:   in.Subject,
			Audience:  jwt.ClaimStrings(in.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(in.TTL)),
			ID:        NewJTI(),
		},
		SID:           in.SID,
		Email:         in.Email,
		Permissions:   in.Permissions,
		Roles:         in.Roles,
		EmailVerified: in.EmailVerified,
		AMR:           in.AMR,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasPermission reports whether the token carries the named permission.
func (c *Claims) HasPermission(name string) bool {
	return slices.Contains(c.Permissions, name)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiryAt checks exp and nbf against now, allowing leeway for clock skew.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
