package service

import (
	"context"
	"crypto/subtle"
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

// DefaultBootstrapRoles are seeded when a bootstrap request names no roles:
// an admin role that can manage users, roles and permissions, and a default
// member role for self-registered accounts.
func DefaultBootstrapRoles() []domain.RoleDefinition {
	return []domain.RoleDefinition{
		{
			Name:        "admin",
			Description: "Full administrative access",
			Admin:       true,
			Permissions: []string{
				PermissionRoleManage,
				PermissionRoleDelete,
				PermissionUserManage,
				PermissionPermissionManage,
			},
		},
		{
			Name:        "member",
			Description: "Default role for new accounts",
			Default:     true,
			Permissions: []string{"profile:read"},
		},
	}
}

// BootstrapService seeds an empty deployment. It only runs while no user
// exists, and only for a caller holding the configured token.
type BootstrapService struct {
	Store     store.Store
	Hasher    CredentialHasher
	Clock     Clock
	Validator *PermissionValidator
	Events    *events.Bus
	Token     string
}

// BootstrapResult names what was created.
type BootstrapResult struct {
	AdminUserID idx.ID
	Roles       map[string]idx.ID
}

// Enabled reports whether a bootstrap token is configured.
func (s *BootstrapService) Enabled() bool { return s.Token != "" }

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	return hasUsers(ctx, s.Store)
}

func hasUsers(ctx context.Context, st store.Store) (bool, error) {
	_, total, err := st.Users().FindAll(ctx, store.Page{Limit: 1})
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *BootstrapService) now() time.Time {
	if s.Clock == nil {
		return SystemClock{}.Now()
	}
	return s.Clock.Now()
}

// Bootstrap creates the permissions, roles and first administrator in one
// transaction. The administrator's email counts as verified so they can log
// in straight away.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, data domain.BootstrapData) (*BootstrapResult, error) {
	l := slogx.FromContext(ctx)

	if !s.Enabled() || subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		l.Warn("unauthorized bootstrap attempt")
		return nil, domain.ErrBootstrapToken
	}

	email, err := domain.NewEmail(data.AdminEmail)
	if err != nil {
		return nil, err
	}
	password, err := domain.NewPassword(data.AdminPassword)
	if err != nil {
		return nil, err
	}
	first, err := domain.NewName("first_name", data.AdminFirstName)
	if err != nil {
		return nil, err
	}
	last, err := domain.NewName("last_name", data.AdminLastName)
	if err != nil {
		return nil, err
	}

	defs := data.Roles
	if len(defs) == 0 {
		defs = DefaultBootstrapRoles()
	}
	if err := validateRoleDefinitions(defs); err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(password.Reveal())
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	code, err := cryptox.GenerateNumericCode(DefaultEmailCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	now := s.now()
	admin := domain.NewUser(idx.NewAt(now), email, hash, first, last, now)
	var roles []*domain.Role

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Checked inside the transaction so two racing requests cannot both
		// seed.
		done, err := hasUsers(ctx, tx)
		if err != nil {
			return err
		}
		if done {
			return domain.ErrAlreadyBootstrapped
		}

		perms := make(map[string]*domain.Permission)
		for _, def := range defs {
			r, err := domain.NewRole(idx.NewAt(now), def.Name, def.Description, def.Admin, now)
			if err != nil {
				return err
			}
			for _, name := range def.Permissions {
				p, ok := perms[name]
				if !ok {
					if p, err = findOrCreatePermission(ctx, tx, name, now); err != nil {
						return err
					}
					perms[name] = p
				}
				if s.Validator != nil {
					if err := s.Validator.ValidateAddition(r, p); err != nil {
						return err
					}
				}
				r.AddPermission(p, now)
			}
			r.SetDefault(def.Default, now)
			if err := tx.Roles().Create(ctx, r); err != nil {
				return conflict(err, "name", r.Name)
			}
			if def.Admin {
				if err := admin.AddRole(r, now); err != nil {
					return err
				}
			}
			roles = append(roles, r)
		}

		if err := tx.Users().Create(ctx, admin); err != nil {
			return conflict(err, "email", email)
		}
		verifiedAt := now
		return tx.EmailVerifications().Create(ctx, &domain.EmailVerification{
			ID:         idx.NewAt(now),
			Email:      email.String(),
			Code:       code,
			ExpiresAt:  now,
			VerifiedAt: &verifiedAt,
			CreatedAt:  now,
		})
	})
	if err != nil {
		l.Warn("bootstrap failed", slog.Any("error", err))
		return nil, err
	}

	res := &BootstrapResult{AdminUserID: admin.ID, Roles: make(map[string]idx.ID, len(roles))}
	sources := make([]events.Source, 0, len(roles)+1)
	for _, r := range roles {
		res.Roles[r.Name] = r.ID
		sources = append(sources, r)
	}
	sources = append(sources, admin)
	s.Events.Dispatch(ctx, sources...)

	l.Info("system bootstrapped",
		slog.String("admin_user_id", admin.ID.String()),
		slog.Int("roles", len(roles)),
	)
	return res, nil
}

// validateRoleDefinitions wants unique names, at least one admin role and
// at most one default role.
func validateRoleDefinitions(defs []domain.RoleDefinition) error {
	seen := make(map[string]bool, len(defs))
	var admins, defaults int
	for _, def := range defs {
		if seen[def.Name] {
			return domain.InvalidValue("roles", "duplicate role "+def.Name)
		}
		seen[def.Name] = true
		if def.Admin {
			admins++
		}
		if def.Default {
			defaults++
		}
	}
	if admins == 0 {
		return domain.InvalidValue("roles", "an admin role is required")
	}
	if defaults > 1 {
		return domain.InvalidValue("roles", "at most one default role")
	}
	return nil
}

func findOrCreatePermission(ctx context.Context, tx store.Tx, name string, now time.Time) (*domain.Permission, error) {
	ra, err := domain.ParseResourceAction(name)
	if err != nil {
		return nil, err
	}
	p, err := tx.Permissions().FindByName(ctx, ra.String())
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	p = domain.NewPermission(idx.NewAt(now), ra, "", now)
	if err := tx.Permissions().Create(ctx, p); err != nil {
		return nil, conflict(err, "name", ra.String())
	}
	return p, nil
}
