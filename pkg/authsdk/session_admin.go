package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// The calls below need the matching permission on a current role:
// user:manage for users, role:manage or role:delete for roles and
// permission:manage for permissions.

// ListUsers returns one page of users. limit <= 0 leaves the page size to
// the server.
func (s *Session) ListUsers(ctx context.Context, limit, offset int) (*ListUsersResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return sessionCall[ListUsersResponse](ctx, s, http.MethodGet, path, nil)
}

func (s *Session) ActivateUser(ctx context.Context, userID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/activate", nil)
}

func (s *Session) DeactivateUser(ctx context.Context, userID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/deactivate", nil)
}

// AssignRole gives a user a role. Admin roles need two-factor on the target.
func (s *Session) AssignRole(ctx context.Context, userID, roleID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/roles",
		RoleAssignRequest{RoleID: roleID})
}

func (s *Session) RemoveRole(ctx context.Context, userID, roleID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodDelete,
		"/v1/users/"+url.PathEscape(userID)+"/roles/"+url.PathEscape(roleID), nil)
}

func (s *Session) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleInfo, error) {
	return sessionCallStatus[RoleInfo](ctx, s, http.MethodPost, "/v1/roles", req, http.StatusCreated)
}

func (s *Session) AddRolePermission(ctx context.Context, roleID, permissionID string) (*RoleInfo, error) {
	return sessionCall[RoleInfo](ctx, s, http.MethodPost, "/v1/roles/"+url.PathEscape(roleID)+"/permissions",
		RolePermissionRequest{PermissionID: permissionID})
}

func (s *Session) RemoveRolePermission(ctx context.Context, roleID, permissionID string) (*RoleInfo, error) {
	return sessionCall[RoleInfo](ctx, s, http.MethodDelete,
		"/v1/roles/"+url.PathEscape(roleID)+"/permissions/"+url.PathEscape(permissionID), nil)
}

// SetDefaultRole makes a role the one new accounts receive.
func (s *Session) SetDefaultRole(ctx context.Context, roleID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/roles/"+url.PathEscape(roleID)+"/default", nil)
}

func (s *Session) DeleteRole(ctx context.Context, roleID string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodDelete, "/v1/roles/"+url.PathEscape(roleID), nil)
}

func (s *Session) ListPermissions(ctx context.Context) (*ListPermissionsResponse, error) {
	return sessionCall[ListPermissionsResponse](ctx, s, http.MethodGet, "/v1/permissions", nil)
}

func (s *Session) CreatePermission(ctx context.Context, req CreatePermissionRequest) (*PermissionInfo, error) {
	return sessionCallStatus[PermissionInfo](ctx, s, http.MethodPost, "/v1/permissions", req, http.StatusCreated)
}
