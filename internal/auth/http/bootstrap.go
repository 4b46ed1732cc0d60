package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

// BootstrapHandler seeds the first administrator and the role catalogue on
// an empty database. Without a configured bootstrap token it answers 404.
type BootstrapHandler struct {
	responder
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles POST /v1/bootstrap.
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.BootstrapService.Enabled() {
		http.NotFound(w, r)
		return
	}

	token := r.Header.Get(authsdk.BootstrapTokenHeader)
	if token == "" {
		h.fail(w, r, domain.ErrBootstrapToken)
		return
	}

	var req authsdk.BootstrapRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}

	data := domain.BootstrapData{
		AdminEmail:     req.AdminEmail,
		AdminPassword:  req.AdminPassword,
		AdminFirstName: req.AdminFirstName,
		AdminLastName:  req.AdminLastName,
	}
	for _, role := range req.Roles {
		data.Roles = append(data.Roles, domain.RoleDefinition{
			Name:        role.Name,
			Description: role.Description,
			Admin:       role.IsAdmin,
			Default:     role.IsDefault,
			Permissions: role.Permissions,
		})
	}

	res, err := h.BootstrapService.Bootstrap(r.Context(), token, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := authsdk.BootstrapResponse{
		AdminUserID: res.AdminUserID.String(),
		Roles:       make(map[string]string, len(res.Roles)),
	}
	for name, id := range res.Roles {
		out.Roles[name] = id.String()
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}
