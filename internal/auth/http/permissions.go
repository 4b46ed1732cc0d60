package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

// PermissionsHandler serves the permission catalogue.
type PermissionsHandler struct {
	responder
	PermissionService *service.PermissionService
}

func toPermissionInfo(p *domain.Permission) authsdk.PermissionInfo {
	return authsdk.PermissionInfo{
		ID:          p.ID.String(),
		Name:        p.Name(),
		Resource:    p.ResourceAction.Resource(),
		Action:      string(p.ResourceAction.Action()),
		Description: p.Description,
	}
}

// HandleList handles GET /v1/permissions.
func (h *PermissionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	perms, err := h.PermissionService.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := authsdk.ListPermissionsResponse{
		Permissions: make([]authsdk.PermissionInfo, len(perms)),
	}
	for i, p := range perms {
		out.Permissions[i] = toPermissionInfo(p)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /v1/permissions.
func (h *PermissionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CreatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	p, err := h.PermissionService.Create(r.Context(), req.Resource, req.Action, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toPermissionInfo(p))
}
