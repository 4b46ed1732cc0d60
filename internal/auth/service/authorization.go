package service

import (
	"slices"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/spec"
)

// Permissions the policy checks look for.
const (
	PermissionRoleManage       = "role:manage"
	PermissionRoleDelete       = "role:delete"
	PermissionUserManage       = "user:manage"
	PermissionPermissionManage = "permission:manage"
)

// SecurityLevel is a coarse rating of how well an account is protected and
// how much it can do.
type SecurityLevel string

const (
	SecurityLow      SecurityLevel = "low"
	SecurityMedium   SecurityLevel = "medium"
	SecurityHigh     SecurityLevel = "high"
	SecurityCritical SecurityLevel = "critical"
)

// DefaultSensitiveResources are always audited, whoever touches them.
var DefaultSensitiveResources = []string{"user", "role", "permission", "system"}

// AuthorizationService answers policy questions about already-loaded
// entities. It performs no I/O.
type AuthorizationService struct {
	// SensitiveResources overrides DefaultSensitiveResources when set.
	SensitiveResources []string
}

// CanAccessAdminFeatures: active, admin and a complete account.
func (s *AuthorizationService) CanAccessAdminFeatures(u *domain.User) bool {
	return spec.And(
		spec.UserIsActive(),
		spec.UserIsAdmin(),
		spec.UserAccountComplete(),
	).IsSatisfiedBy(u)
}

func (s *AuthorizationService) CanPerformSensitiveOperation(u *domain.User) bool {
	return spec.UserIsActive().And(spec.UserHasTwoFactor()).IsSatisfiedBy(u)
}

// CanAssignRole checks the assigner, the target and, for admin roles, the
// assigner's elevated permission.
func (s *AuthorizationService) CanAssignRole(assigner, target *domain.User, role *domain.Role) bool {
	if !s.CanAccessAdminFeatures(assigner) {
		return false
	}
	if !spec.UserEligibleForRole(role).IsSatisfiedBy(target) {
		return false
	}
	if spec.RoleIsAdmin().IsSatisfiedBy(role) {
		return spec.UserHasPermission(PermissionRoleManage).IsSatisfiedBy(assigner)
	}
	return true
}

func (s *AuthorizationService) CanDeleteRole(u *domain.User, role *domain.Role) bool {
	return s.CanAccessAdminFeatures(u) &&
		spec.RoleIsDeletable().IsSatisfiedBy(role) &&
		spec.UserHasPermission(PermissionRoleDelete).IsSatisfiedBy(u)
}

// CanAccessResource reports whether an active user holds resource:action.
func (s *AuthorizationService) CanAccessResource(u *domain.User, resource, action string) bool {
	return spec.UserIsActive().
		And(spec.UserHasPermission(resource + ":" + action)).
		IsSatisfiedBy(u)
}

func (s *AuthorizationService) SecurityLevel(u *domain.User) SecurityLevel {
	switch {
	case !u.Active:
		return SecurityLow
	case u.IsAdmin() && u.TwoFactorEnabled:
		return SecurityCritical
	case u.TwoFactorEnabled:
		return SecurityHigh
	default:
		return SecurityMedium
	}
}

// RequiresAudit: every admin access is audited, other users only on
// sensitive resources.
func (s *AuthorizationService) RequiresAudit(u *domain.User, resource string) bool {
	if u.IsAdmin() {
		return true
	}
	sensitive := s.SensitiveResources
	if sensitive == nil {
		sensitive = DefaultSensitiveResources
	}
	return slices.Contains(sensitive, resource)
}
