package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInUse         = errors.New("store: still referenced")
)

// Store is the root data access interface. Concrete drivers implement it and
// hand out sub-repositories. Tx-scoped stores refuse to nest so a method can
// never open a second transaction from inside one.
type Store interface {
	Users() Users
	Roles() Roles
	Permissions() Permissions
	RefreshTokens() RefreshTokens
	OTPs() OTPs
	EmailVerifications() EmailVerifications
	PasswordResets() PasswordResets
	TwoFactorChallenges() TwoFactorChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error, the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Page bounds a list query. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

type Users interface {
	// FindByID loads the user with its roles (in assignment order) and
	// each role's permissions.
	FindByID(ctx context.Context, id idx.ID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindAll returns one page of users ordered by creation and the total count.
	FindAll(ctx context.Context, page Page) ([]*domain.User, int, error)

	// Create inserts the user and its role assignments.
	Create(ctx context.Context, u *domain.User) error

	// Update writes every mutable column and replaces the role assignments.
	Update(ctx context.Context, u *domain.User) error

	// TouchLastLogin writes only the last login and updated timestamps, so
	// it never races a concurrent role or profile change.
	TouchLastLogin(ctx context.Context, id idx.ID, at time.Time) error

	// SetPasswordHash writes only the hash and updated timestamp.
	SetPasswordHash(ctx context.Context, id idx.ID, hash string, at time.Time) error

	// ClaimTwoFactorStep records step as the last authenticator step used
	// and reports false when an equal or later step was already claimed.
	ClaimTwoFactorStep(ctx context.Context, id idx.ID, step int64) (bool, error)

	// Delete cascades to refresh tokens, OTPs and resets.
	Delete(ctx context.Context, id idx.ID) error
}

type Roles interface {
	FindByID(ctx context.Context, id idx.ID) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	FindAll(ctx context.Context) ([]*domain.Role, error)

	// FindDefault returns ErrNotFound when no role is flagged default.
	FindDefault(ctx context.Context) (*domain.Role, error)

	Create(ctx context.Context, r *domain.Role) error

	// Update writes name, description and flags and replaces the permission list.
	Update(ctx context.Context, r *domain.Role) error

	// Delete returns ErrInUse while any user still holds the role.
	Delete(ctx context.Context, id idx.ID) error
}

type Permissions interface {
	FindByID(ctx context.Context, id idx.ID) (*domain.Permission, error)
	FindByName(ctx context.Context, name string) (*domain.Permission, error)
	FindAll(ctx context.Context) ([]*domain.Permission, error)
	FindByResource(ctx context.Context, resource string) ([]*domain.Permission, error)
	Create(ctx context.Context, p *domain.Permission) error

	// Update only writes the description, the one mutable field.
	Update(ctx context.Context, p *domain.Permission) error
	Delete(ctx context.Context, id idx.ID) error
}

type RefreshTokens interface {
	// FindByToken looks a token up by its fingerprint.
	FindByToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	FindByUserID(ctx context.Context, userID idx.ID) ([]*domain.RefreshToken, error)
	Create(ctx context.Context, t *domain.RefreshToken) error

	// Update writes the revocation timestamp.
	Update(ctx context.Context, t *domain.RefreshToken) error
	DeleteByUserID(ctx context.Context, userID idx.ID) error

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type OTPs interface {
	FindByID(ctx context.Context, id idx.ID) (*domain.OneTimePassword, error)

	// FindLatestByUserID returns the most recently created OTP for the user.
	FindLatestByUserID(ctx context.Context, userID idx.ID) (*domain.OneTimePassword, error)
	Create(ctx context.Context, o *domain.OneTimePassword) error

	// Update writes the verification timestamp.
	Update(ctx context.Context, o *domain.OneTimePassword) error
	Delete(ctx context.Context, id idx.ID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type EmailVerifications interface {
	Create(ctx context.Context, v *domain.EmailVerification) error
	FindByCode(ctx context.Context, email, code string) (*domain.EmailVerification, error)

	// IsVerified reports whether any verification for email has been completed.
	IsVerified(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, v *domain.EmailVerification) error

	// DeleteByEmail drops pending (unverified) codes for the address.
	DeleteByEmail(ctx context.Context, email string) error

	// DeleteExpired removes expired codes that were never verified.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResets interface {
	Create(ctx context.Context, p *domain.PasswordReset) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error)
	Update(ctx context.Context, p *domain.PasswordReset) error
	DeleteByUserID(ctx context.Context, userID idx.ID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TwoFactorChallenges interface {
	Create(ctx context.Context, c *domain.TwoFactorChallenge) error

	// FindByToken looks a challenge up by its fingerprint.
	FindByToken(ctx context.Context, tokenHash string) (*domain.TwoFactorChallenge, error)

	// IncrementAttempts bumps the failure counter and returns the new value.
	IncrementAttempts(ctx context.Context, id idx.ID) (int, error)

	// Delete returns ErrNotFound when the challenge is already gone, which
	// lets exactly one of two concurrent completions win.
	Delete(ctx context.Context, id idx.ID) error
	DeleteByUserID(ctx context.Context, userID idx.ID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
