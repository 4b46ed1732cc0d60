package spec

import "github.com/aussiebroadwan/parish/internal/auth/domain"

// UserIsActive is satisfied by active users.
func UserIsActive() Spec[*domain.User] {
	return func(u *domain.User) bool { return u.Active }
}

func UserHasTwoFactor() Spec[*domain.User] {
	return func(u *domain.User) bool { return u.TwoFactorEnabled && u.TwoFactorSecret != "" }
}

// UserIsAdmin holds for users with at least one admin-capable role.
func UserIsAdmin() Spec[*domain.User] {
	return func(u *domain.User) bool { return u.IsAdmin() }
}

// UserAccountComplete requires a full name and at least one role.
func UserAccountComplete() Spec[*domain.User] {
	return func(u *domain.User) bool {
		return !u.FirstName.IsZero() && !u.LastName.IsZero() && len(u.Roles) > 0
	}
}

// UserHasPermission aggregates across every assigned role.
func UserHasPermission(name string) Spec[*domain.User] {
	return func(u *domain.User) bool { return u.HasPermission(name) }
}

// UserEligibleForRole: the user must be active, and admin roles additionally
// require two-factor authentication.
func UserEligibleForRole(role *domain.Role) Spec[*domain.User] {
	if role.IsAdmin {
		return And(UserIsActive(), UserHasTwoFactor())
	}
	return UserIsActive()
}
