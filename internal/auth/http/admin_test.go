package http_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/stretchr/testify/require"
)

// adminRole creates an admin role holding every administrative permission.
func (s *server) adminRole(t *testing.T) *domain.Role {
	t.Helper()
	ctx := context.Background()
	r, err := s.roles.Create(ctx, "admin", "", true)
	require.NoError(t, err)
	for _, name := range []string{
		service.PermissionRoleManage,
		service.PermissionRoleDelete,
		service.PermissionUserManage,
		service.PermissionPermissionManage,
	} {
		ra, err := domain.ParseResourceAction(name)
		require.NoError(t, err)
		p, err := s.perms.Create(ctx, ra.Resource(), string(ra.Action()), "")
		require.NoError(t, err)
		r, err = s.roles.AddPermission(ctx, r.ID, p.ID)
		require.NoError(t, err)
	}
	return r
}

func (s *server) reload(t *testing.T, id idx.ID) *domain.User {
	t.Helper()
	u, err := s.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (s *server) login(t *testing.T, email string) *authsdk.Session {
	t.Helper()
	session, _, err := s.client.AuthenticateWithPassword(context.Background(), email, password)
	require.NoError(t, err)
	return session
}

func TestAdminRoutesNeedPermission(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	target := s.user(t, "kim@example.com")
	s.user(t, "joe@example.com")
	s.verified(t, "joe@example.com")
	joe := s.login(t, "joe@example.com")

	calls := map[string]func() error{
		"list users": func() error { _, err := joe.ListUsers(ctx, 10, 0); return err },
		"deactivate": func() error { _, err := joe.DeactivateUser(ctx, target.ID.String()); return err },
		"create role": func() error {
			_, err := joe.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "mine"})
			return err
		},
		"list permissions": func() error { _, err := joe.ListPermissions(ctx); return err },
		"create permission": func() error {
			_, err := joe.CreatePermission(ctx, authsdk.CreatePermissionRequest{Resource: "post", Action: "read"})
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			requireAPIError(t, call(), http.StatusForbidden, "forbidden")
		})
	}

	require.True(t, s.reload(t, target.ID).Active)
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	admin := s.adminRole(t)
	root := s.user(t, "root@example.com", admin)
	s.verified(t, "root@example.com")
	kim := s.user(t, "kim@example.com")
	s.verified(t, "kim@example.com")
	session := s.login(t, "root@example.com")

	page, err := session.ListUsers(ctx, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Users, 1)

	_, err = session.ListUsers(ctx, 500, 0)
	apiErr := requireAPIError(t, err, http.StatusBadRequest, "invalid_value_object")
	require.Equal(t, "limit", apiErr.Field)

	_, err = session.DeactivateUser(ctx, root.ID.String())
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
	_, err = session.DeactivateUser(ctx, "nope")
	requireAPIError(t, err, http.StatusBadRequest, "invalid_value_object")

	_, err = session.DeactivateUser(ctx, kim.ID.String())
	require.NoError(t, err)
	_, err = s.client.Login(ctx, "kim@example.com", password)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = session.ActivateUser(ctx, kim.ID.String())
	require.NoError(t, err)

	editor, err := session.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "editor", Description: "Edits posts"})
	require.NoError(t, err)
	require.False(t, editor.IsAdmin)

	reviewer, err := session.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "reviewer"})
	require.NoError(t, err)

	_, err = session.AssignRole(ctx, kim.ID.String(), editor.ID)
	require.NoError(t, err)
	_, err = session.AssignRole(ctx, kim.ID.String(), reviewer.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"editor", "reviewer"}, s.reload(t, kim.ID).RoleNames())

	// Admin roles need two-factor on the target.
	_, err = session.AssignRole(ctx, kim.ID.String(), admin.ID.String())
	requireAPIError(t, err, http.StatusUnprocessableEntity, "role_not_eligible")

	_, err = session.RemoveRole(ctx, kim.ID.String(), editor.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"reviewer"}, s.reload(t, kim.ID).RoleNames())

	_, err = session.RemoveRole(ctx, kim.ID.String(), reviewer.ID)
	requireAPIError(t, err, http.StatusUnprocessableEntity, "last_role")
}

func TestRoleAndPermissionAdministration(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	s.user(t, "root@example.com", s.adminRole(t))
	s.verified(t, "root@example.com")
	session := s.login(t, "root@example.com")

	create, err := session.CreatePermission(ctx, authsdk.CreatePermissionRequest{Resource: "user", Action: "create"})
	require.NoError(t, err)
	require.Equal(t, "user:create", create.Name)
	del, err := session.CreatePermission(ctx, authsdk.CreatePermissionRequest{Resource: "user", Action: "delete"})
	require.NoError(t, err)

	_, err = session.CreatePermission(ctx, authsdk.CreatePermissionRequest{Resource: "user", Action: "fly"})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_value_object")

	perms, err := session.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms.Permissions, 6)

	role, err := session.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "onboarding"})
	require.NoError(t, err)
	_, err = session.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "onboarding"})
	requireAPIError(t, err, http.StatusConflict, "already_exists")

	role2, err := session.AddRolePermission(ctx, role.ID, create.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"user:create"}, role2.Permissions)

	_, err = session.AddRolePermission(ctx, role.ID, del.ID)
	requireAPIError(t, err, http.StatusUnprocessableEntity, "permission_conflict")

	role2, err = session.RemoveRolePermission(ctx, role.ID, create.ID)
	require.NoError(t, err)
	require.Empty(t, role2.Permissions)

	_, err = session.SetDefaultRole(ctx, role.ID)
	require.NoError(t, err)
	_, err = session.DeleteRole(ctx, role.ID)
	requireAPIError(t, err, http.StatusUnprocessableEntity, "default_role")

	spare, err := session.CreateRole(ctx, authsdk.CreateRoleRequest{Name: "spare"})
	require.NoError(t, err)
	_, err = session.DeleteRole(ctx, spare.ID)
	require.NoError(t, err)

	list, err := session.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, list.Roles, 2)
}

func TestRevokedRoleTakesEffectBeforeTokenExpiry(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	admin := s.adminRole(t)
	member, err := s.roles.Create(ctx, "member", "", false)
	require.NoError(t, err)
	root := s.user(t, "root@example.com", admin, member)
	s.verified(t, "root@example.com")
	session := s.login(t, "root@example.com")

	_, err = session.ListUsers(ctx, 10, 0)
	require.NoError(t, err)

	// The token still carries the claims; the stored roles no longer do.
	u := s.reload(t, root.ID)
	require.NoError(t, u.RemoveRole(admin.ID, u.UpdatedAt))
	require.NoError(t, s.store.Users().Update(ctx, u))

	_, err = session.ListUsers(ctx, 10, 0)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
}
