package domain

import (
	"time"

	"github.com/aussiebroadwan/parish/pkg/idx"
)

// RefreshToken is a continued-session credential. Only the SHA-256
// fingerprint is persisted; Token holds the plaintext just after issuance.
type RefreshToken struct {
	ID        idx.ID
	UserID    idx.ID
	Token     string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsExpired is true at and after ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
func (t *RefreshToken) IsRevoked() bool              { return t.RevokedAt != nil }

func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked()
}

// Revoke keeps the first revocation time when called twice.
func (t *RefreshToken) Revoke(now time.Time) {
	if t.RevokedAt != nil {
		return
	}
	at := now
	t.RevokedAt = &at
}

// OneTimePassword is a short-lived TOTP secret, separate from the user's
// permanent two-factor secret.
type OneTimePassword struct {
	ID         idx.ID
	UserID     idx.ID
	Secret     string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

func (o *OneTimePassword) IsExpired(now time.Time) bool { return !now.Before(o.ExpiresAt) }
func (o *OneTimePassword) IsVerified() bool             { return o.VerifiedAt != nil }

func (o *OneTimePassword) MarkVerified(now time.Time) {
	at := now
	o.VerifiedAt = &at
}

// EmailVerification is a numeric code sent to an address.
type EmailVerification struct {
	ID         idx.ID
	Email      string
	Code       string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

func (e *EmailVerification) IsExpired(now time.Time) bool { return !now.Before(e.ExpiresAt) }
func (e *EmailVerification) IsVerified() bool             { return e.VerifiedAt != nil }

func (e *EmailVerification) MarkVerified(now time.Time) {
	at := now
	e.VerifiedAt = &at
}

// PasswordReset is a single-use reset token, stored as a fingerprint.
type PasswordReset struct {
	ID        idx.ID
	UserID    idx.ID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (p *PasswordReset) IsExpired(now time.Time) bool { return !now.Before(p.ExpiresAt) }
func (p *PasswordReset) IsUsed() bool                 { return p.UsedAt != nil }

func (p *PasswordReset) MarkUsed(now time.Time) {
	at := now
	p.UsedAt = &at
}

// MaxTwoFactorAttempts is how many wrong codes a challenge absorbs before
// it is discarded and the login has to start over.
const MaxTwoFactorAttempts = 5

// TwoFactorChallenge is a login that passed the password and email gates
// and now waits for a second factor. Token holds the plaintext just after
// the challenge is opened; only its fingerprint is stored.
type TwoFactorChallenge struct {
	ID        idx.ID
	UserID    idx.ID
	Token     string
	TokenHash string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c *TwoFactorChallenge) IsExpired(now time.Time) bool { return !now.Before(c.ExpiresAt) }
func (c *TwoFactorChallenge) IsExhausted() bool            { return c.Attempts >= MaxTwoFactorAttempts }
