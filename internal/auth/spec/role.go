package spec

import "github.com/aussiebroadwan/parish/internal/auth/domain"

// RoleIsDeletable holds for non-default roles.
func RoleIsDeletable() Spec[*domain.Role] {
	return func(r *domain.Role) bool { return !r.IsDefault }
}

func RoleIsAdmin() Spec[*domain.Role] {
	return func(r *domain.Role) bool { return r.IsAdmin }
}
