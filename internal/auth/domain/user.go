package domain

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/parish/pkg/idx"
)

// User is the identity aggregate. Fields are exported so repositories can
// rehydrate it; all changes after load go through the methods below, which
// enforce invariants and record events.
type User struct {
	ID               idx.ID
	Email            Email
	PasswordHash     string
	FirstName        Name
	LastName         Name
	Active           bool
	TwoFactorEnabled bool
	TwoFactorSecret  string // empty iff TwoFactorEnabled is false
	Roles            []*Role
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	eventBuffer
}

// NewUser creates an active user with no roles and records user.registered.
func NewUser(id idx.ID, email Email, passwordHash string, first, last Name, now time.Time) *User {
	u := &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    first,
		LastName:     last,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.record(EventUserRegistered, id, now, "email", email.String())
	return u
}

func (u *User) touch(now time.Time) { u.UpdatedAt = now }

func (u *User) ensureActive() error {
	if !u.Active {
		return ErrUserInactive
	}
	return nil
}

// Activate is a no-op for an already active user.
func (u *User) Activate(now time.Time) {
	if u.Active {
		return
	}
	u.Active = true
	u.touch(now)
	u.record(EventUserActivated, u.ID, now)
}

func (u *User) Deactivate(now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	u.Active = false
	u.touch(now)
	u.record(EventUserDeactivated, u.ID, now)
	return nil
}

func (u *User) EnableTwoFactor(secret string, now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	if u.TwoFactorEnabled {
		return ErrTwoFactorEnabled
	}
	if secret == "" {
		return InvalidValue("two_factor_secret", "secret is required")
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = secret
	u.touch(now)
	u.record(EventUserTwoFactorEnabled, u.ID, now)
	return nil
}

func (u *User) DisableTwoFactor(now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	if !u.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	u.TwoFactorEnabled = false
	u.TwoFactorSecret = ""
	u.touch(now)
	u.record(EventUserTwoFactorDisabled, u.ID, now)
	return nil
}

// AddRole is idempotent by role id.
func (u *User) AddRole(role *Role, now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	if u.HasRole(role.ID) {
		return nil
	}
	u.Roles = append(u.Roles, role)
	u.touch(now)
	u.record(EventUserRoleAssigned, u.ID, now, "role_id", role.ID.String(), "role", role.Name)
	return nil
}

// RemoveRole refuses to leave the user without roles.
func (u *User) RemoveRole(roleID idx.ID, now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	i := slices.IndexFunc(u.Roles, func(r *Role) bool { return r.ID == roleID })
	if i < 0 {
		return NotFound("role", roleID)
	}
	if len(u.Roles) == 1 {
		return ErrLastRole
	}
	removed := u.Roles[i]
	u.Roles = slices.Delete(slices.Clone(u.Roles), i, i+1)
	u.touch(now)
	u.record(EventUserRoleRemoved, u.ID, now, "role_id", removed.ID.String(), "role", removed.Name)
	return nil
}

func (u *User) ChangeEmail(email Email, now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	if u.Email.Equal(email) {
		return nil
	}
	old := u.Email
	u.Email = email
	u.touch(now)
	u.record(EventUserEmailChanged, u.ID, now, "old_email", old.String(), "email", email.String())
	return nil
}

func (u *User) ChangePassword(hash string, now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	if hash == "" {
		return InvalidValue("password", "password hash is required")
	}
	u.PasswordHash = hash
	u.touch(now)
	u.record(EventUserPasswordChanged, u.ID, now)
	return nil
}

func (u *User) UpdateLastLogin(now time.Time) error {
	if err := u.ensureActive(); err != nil {
		return err
	}
	t := now
	u.LastLoginAt = &t
	u.touch(now)
	u.record(EventUserLastLoginUpdated, u.ID, now)
	return nil
}

func (u *User) HasRole(id idx.ID) bool {
	return slices.ContainsFunc(u.Roles, func(r *Role) bool { return r.ID == id })
}

// IsAdmin reports whether any assigned role is admin-capable.
func (u *User) IsAdmin() bool {
	return slices.ContainsFunc(u.Roles, func(r *Role) bool { return r.IsAdmin })
}

// PermissionNames unions the permission names of the loaded roles, in
// first-seen order.
func (u *User) PermissionNames() []string {
	return UnionPermissionNames(u.Roles)
}

func (u *User) HasPermission(name string) bool {
	for _, r := range u.Roles {
		if r.HasPermission(name) {
			return true
		}
	}
	return false
}

func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// UserProfile is the outward projection of a user.
type UserProfile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Active           bool       `json:"active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	Roles            []string   `json:"roles"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:               u.ID.String(),
		Email:            u.Email.String(),
		FirstName:        u.FirstName.String(),
		LastName:         u.LastName.String(),
		Active:           u.Active,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Roles:            u.RoleNames(),
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// UnionPermissionNames returns the deduplicated permission names across roles.
func UnionPermissionNames(roles []*Role) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range roles {
		for _, p := range r.Permissions {
			name := p.Name()
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
