package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

const DefaultPasswordResetTTL = time.Hour

type UserService struct {
	Store    store.Store
	Hasher   CredentialHasher
	Clock    Clock
	Secrets  SecretProvider
	Notifier Notifier
	Authz    *AuthorizationService
	Events   *events.Bus

	PasswordResetTTL time.Duration
}

// RegisterInput carries raw, unvalidated registration fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (s *UserService) now() time.Time {
	if s.Clock == nil {
		return SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *UserService) authz() *AuthorizationService {
	if s.Authz == nil {
		return &AuthorizationService{}
	}
	return s.Authz
}

func (s *UserService) GetByID(ctx context.Context, userID idx.ID) (*domain.User, error) {
	u, err := s.Store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return u, nil
}

func (s *UserService) Profile(ctx context.Context, userID idx.ID) (domain.UserProfile, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return u.Profile(), nil
}

// List returns one page of users and the total count.
func (s *UserService) List(ctx context.Context, page store.Page) ([]*domain.User, int, error) {
	return s.Store.Users().FindAll(ctx, page)
}

// Register validates every field before touching storage, then creates an
// active user holding the default role, if one is configured.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	password, err := domain.NewPassword(in.Password)
	if err != nil {
		return nil, err
	}
	first, err := domain.NewName("first_name", in.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := domain.NewName("last_name", in.LastName)
	if err != nil {
		return nil, err
	}

	if _, err := s.Store.Users().FindByEmail(ctx, email.String()); err == nil {
		return nil, domain.AlreadyExists("email", email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := s.Hasher.Hash(password.Reveal())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.NewUser(idx.NewAt(now), email, hash, first, last, now)

	def, err := s.Store.Roles().FindDefault(ctx)
	switch {
	case err == nil:
		if err := u.AddRole(def, now); err != nil {
			return nil, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := s.Store.Users().Create(ctx, u); err != nil {
		return nil, conflict(err, "email", email)
	}
	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID.String()))
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return u, nil
}

// Authenticate returns the active user matching email and password. Every
// failure is ErrInvalidCredentials so callers cannot tell which part was
// wrong.
func (s *UserService) Authenticate(ctx context.Context, rawEmail, password string) (*domain.User, error) {
	l := slogx.FromContext(ctx)

	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	u, err := s.Store.Users().FindByEmail(ctx, email.String())
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("login rejected", slog.String("reason", "unknown_email"))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		l.Warn("login rejected", slog.String("reason", "inactive"), slog.String("user_id", u.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.Hasher.Compare(u.PasswordHash, password); err != nil {
		if errors.Is(err, cryptox.ErrMalformedHash) {
			l.Error("stored password hash unreadable", slog.String("user_id", u.ID.String()), slog.Any("error", err))
		} else {
			l.Warn("login rejected", slog.String("reason", "password_mismatch"), slog.String("user_id", u.ID.String()))
		}
		return nil, domain.ErrInvalidCredentials
	}

	if rh, ok := s.Hasher.(rehasher); ok && rh.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}
	return u, nil
}

// rehash upgrades a legacy hash in place. Failure leaves the old hash,
// which still verifies.
func (s *UserService) rehash(ctx context.Context, u *domain.User, password string) {
	hash, err := s.Hasher.Hash(password)
	if err == nil {
		err = s.Store.Users().SetPasswordHash(ctx, u.ID, hash, s.now())
	}
	if err == nil {
		u.PasswordHash = hash
	}
	if err != nil {
		slogx.FromContext(ctx).Error("password rehash failed", slog.String("user_id", u.ID.String()), slog.Any("error", err))
	}
}

// ChangePassword requires the current password. Refresh tokens are revoked
// by the password-changed event handler.
func (s *UserService) ChangePassword(ctx context.Context, userID idx.ID, current, next string) error {
	password, err := domain.NewPassword(next)
	if err != nil {
		return err
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Hasher.Compare(u.PasswordHash, current); err != nil {
		return domain.ErrInvalidCredentials
	}
	return s.setPassword(ctx, u, password, nil)
}

func (s *UserService) setPassword(ctx context.Context, u *domain.User, password domain.Password, reset *domain.PasswordReset) error {
	hash, err := s.Hasher.Hash(password.Reveal())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	if err := u.ChangePassword(hash, now); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		if reset != nil {
			reset.MarkUsed(now)
			return tx.PasswordResets().Update(ctx, reset)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return nil
}

func (s *UserService) ChangeEmail(ctx context.Context, userID idx.ID, rawEmail string) error {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return err
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Email.Equal(email) {
		return nil
	}
	if err := u.ChangeEmail(email, s.now()); err != nil {
		return err
	}
	if err := s.Store.Users().Update(ctx, u); err != nil {
		return conflict(err, "email", email)
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return nil
}

func (s *UserService) Activate(ctx context.Context, userID idx.ID) error {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Activate(s.now())
	return s.save(ctx, u)
}

func (s *UserService) Deactivate(ctx context.Context, userID idx.ID) error {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.Deactivate(s.now()); err != nil {
		return err
	}
	return s.save(ctx, u)
}

func (s *UserService) save(ctx context.Context, u *domain.User) error {
	if err := s.Store.Users().Update(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return nil
}

// AssignRole grants roleID to targetID on behalf of assignerID.
func (s *UserService) AssignRole(ctx context.Context, assignerID, targetID, roleID idx.ID) error {
	assigner, err := s.GetByID(ctx, assignerID)
	if err != nil {
		return err
	}
	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	role, err := s.Store.Roles().FindByID(ctx, roleID)
	if err != nil {
		return notFound(err, "role", roleID)
	}

	if !s.authz().CanAssignRole(assigner, target, role) {
		if !s.authz().CanAccessAdminFeatures(assigner) {
			return domain.ErrForbidden
		}
		return domain.ErrRoleNotEligible
	}
	if err := target.AddRole(role, s.now()); err != nil {
		return err
	}
	return s.save(ctx, target)
}

func (s *UserService) RemoveRole(ctx context.Context, assignerID, targetID, roleID idx.ID) error {
	assigner, err := s.GetByID(ctx, assignerID)
	if err != nil {
		return err
	}
	if !s.authz().CanAccessAdminFeatures(assigner) {
		return domain.ErrForbidden
	}
	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := target.RemoveRole(roleID, s.now()); err != nil {
		return err
	}
	return s.save(ctx, target)
}

func (s *UserService) Delete(ctx context.Context, userID idx.ID) error {
	if err := s.Store.Users().Delete(ctx, userID); err != nil {
		return notFound(err, "user", userID)
	}
	return nil
}

// RequestPasswordReset issues a reset token for email. Unknown addresses
// succeed silently and return an empty token.
func (s *UserService) RequestPasswordReset(ctx context.Context, rawEmail string) (string, error) {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return "", err
	}
	u, err := s.Store.Users().FindByEmail(ctx, email.String())
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("password reset for unknown email ignored")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	token, err := s.Secrets.OpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	ttl := s.PasswordResetTTL
	if ttl <= 0 {
		ttl = DefaultPasswordResetTTL
	}
	now := s.now()
	pr := &domain.PasswordReset{
		ID:        idx.NewAt(now),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PasswordResets().DeleteByUserID(ctx, u.ID); err != nil {
			return err
		}
		return tx.PasswordResets().Create(ctx, pr)
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	if s.Notifier != nil {
		if err := s.Notifier.SendPasswordReset(ctx, u.Email.String(), token); err != nil {
			return "", fmt.Errorf("send reset token: %w", err)
		}
	}
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *UserService) ResetPassword(ctx context.Context, token, next string) error {
	password, err := domain.NewPassword(next)
	if err != nil {
		return err
	}

	pr, err := s.Store.PasswordResets().FindByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrResetInvalid
	}
	if err != nil {
		return err
	}
	if pr.IsUsed() {
		return domain.ErrResetInvalid
	}
	if pr.IsExpired(s.now()) {
		return domain.ErrResetExpired
	}

	u, err := s.GetByID(ctx, pr.UserID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u, password, pr)
}
