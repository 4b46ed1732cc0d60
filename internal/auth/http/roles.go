package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

type RolesHandler struct {
	responder
	RolesService *service.RolesService
}

func toRoleInfo(role *domain.Role) authsdk.RoleInfo {
	return authsdk.RoleInfo{
		ID:          role.ID.String(),
		Name:        role.Name,
		Description: role.Description,
		IsAdmin:     role.IsAdmin,
		IsDefault:   role.IsDefault,
		Permissions: role.PermissionNames(),
	}
}

// HandleList handles GET /v1/roles.
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response := authsdk.ListRolesResponse{
		Roles: make([]authsdk.RoleInfo, len(roles)),
	}
	for i, role := range roles {
		response.Roles[i] = toRoleInfo(role)
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

// HandleCreate handles POST /v1/roles.
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CreateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	role, err := h.RolesService.Create(r.Context(), req.Name, req.Description, req.IsAdmin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toRoleInfo(role))
}

// HandleAddPermission handles POST /v1/roles/{id}/permissions.
func (h *RolesHandler) HandleAddPermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req authsdk.RolePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}
	permID, err := parseID(req.PermissionID, "permissionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	role, err := h.RolesService.AddPermission(r.Context(), roleID, permID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRoleInfo(role))
}

// HandleRemovePermission handles DELETE /v1/roles/{id}/permissions/{permissionId}.
func (h *RolesHandler) HandleRemovePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	permID, err := parseID(r.PathValue("permissionId"), "permissionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	role, err := h.RolesService.RemovePermission(r.Context(), roleID, permID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRoleInfo(role))
}

// HandleSetDefault handles POST /v1/roles/{id}/default.
func (h *RolesHandler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	roleID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.RolesService.SetDefault(r.Context(), roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(r.Context(), "role.default_set")})
}

// HandleDelete handles DELETE /v1/roles/{id}.
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.userID(w, r)
	if !ok {
		return
	}
	roleID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.RolesService.Delete(r.Context(), actorID, roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(r.Context(), "role.deleted")})
}
