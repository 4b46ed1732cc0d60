package service

import (
	"testing"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newRole(t *testing.T, name string, admin bool, perms ...string) *domain.Role {
	t.Helper()
	r, err := domain.NewRole(idx.New(), name, "", admin, t0)
	require.NoError(t, err)
	for _, p := range perms {
		ra, err := domain.ParseResourceAction(p)
		require.NoError(t, err)
		r.AddPermission(domain.NewPermission(idx.New(), ra, "", t0), t0)
	}
	return r
}

func newUser(t *testing.T, roles ...*domain.Role) *domain.User {
	t.Helper()
	u := domain.NewUser(idx.New(), domain.MustEmail("authz@example.com"), "h",
		domain.MustName("Au"), domain.MustName("Thz"), t0)
	for _, r := range roles {
		require.NoError(t, u.AddRole(r, t0))
	}
	return u
}

func TestCanAccessResource(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}

	u := newUser(t, newRole(t, "member", false, "user:read"))
	require.False(t, s.CanAccessResource(u, "system", "delete"))
	require.True(t, s.CanAccessResource(u, "user", "read"))

	require.NoError(t, u.AddRole(newRole(t, "sysop", false, "system:delete"), t0))
	require.True(t, s.CanAccessResource(u, "system", "delete"))

	require.NoError(t, u.Deactivate(t0))
	require.False(t, s.CanAccessResource(u, "system", "delete"))
}

func TestCanAccessAdminFeatures(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}

	require.False(t, s.CanAccessAdminFeatures(newUser(t)))
	require.False(t, s.CanAccessAdminFeatures(newUser(t, newRole(t, "member", false))))
	require.True(t, s.CanAccessAdminFeatures(newUser(t, newRole(t, "admin", true))))

	u := newUser(t, newRole(t, "admin", true))
	require.NoError(t, u.Deactivate(t0))
	require.False(t, s.CanAccessAdminFeatures(u))
}

func TestCanPerformSensitiveOperation(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}
	u := newUser(t)
	require.False(t, s.CanPerformSensitiveOperation(u))
	require.NoError(t, u.EnableTwoFactor("SECRET", t0))
	require.True(t, s.CanPerformSensitiveOperation(u))
}

func TestCanAssignRole(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}

	adminRole := newRole(t, "admin", true)
	member := newRole(t, "member", false)

	plainAdmin := newUser(t, adminRole)
	superAdmin := newUser(t, newRole(t, "super", true, PermissionRoleManage))
	target := newUser(t, member)

	require.True(t, s.CanAssignRole(plainAdmin, target, member))
	require.False(t, s.CanAssignRole(target, plainAdmin, member), "assigner must be admin")
	require.False(t, s.CanAssignRole(superAdmin, target, adminRole), "target lacks two-factor")

	require.NoError(t, target.EnableTwoFactor("SECRET", t0))
	require.False(t, s.CanAssignRole(plainAdmin, target, adminRole), "admin roles need role:manage")
	require.True(t, s.CanAssignRole(superAdmin, target, adminRole))
}

func TestCanDeleteRole(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}
	actor := newUser(t, newRole(t, "admin", true, PermissionRoleDelete))
	r := newRole(t, "spare", false)

	require.True(t, s.CanDeleteRole(actor, r))
	r.SetDefault(true, t0)
	require.False(t, s.CanDeleteRole(actor, r))
	require.False(t, s.CanDeleteRole(newUser(t, newRole(t, "admin", true)), newRole(t, "x", false)))
}

func TestSecurityLevel(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}

	u := newUser(t, newRole(t, "member", false))
	require.Equal(t, SecurityMedium, s.SecurityLevel(u))
	require.NoError(t, u.EnableTwoFactor("SECRET", t0))
	require.Equal(t, SecurityHigh, s.SecurityLevel(u))
	require.NoError(t, u.AddRole(newRole(t, "admin", true), t0))
	require.Equal(t, SecurityCritical, s.SecurityLevel(u))
	require.NoError(t, u.Deactivate(t0))
	require.Equal(t, SecurityLow, s.SecurityLevel(u))
}

func TestRequiresAudit(t *testing.T) {
	t.Parallel()
	s := &AuthorizationService{}

	member := newUser(t, newRole(t, "member", false))
	require.True(t, s.RequiresAudit(member, "user"))
	require.False(t, s.RequiresAudit(member, "posts"))
	require.True(t, s.RequiresAudit(newUser(t, newRole(t, "admin", true)), "posts"))

	custom := &AuthorizationService{SensitiveResources: []string{"posts"}}
	require.True(t, custom.RequiresAudit(member, "posts"))
	require.False(t, custom.RequiresAudit(member, "user"))
}
