package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// UsersHandler serves user administration.
type UsersHandler struct {
	responder
	UserService *service.UserService
}

// pageFrom reads limit and offset from the query string.
func pageFrom(r *http.Request) (store.Page, error) {
	page := store.Page{Limit: defaultPageSize}
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			return page, domain.InvalidValue("limit", "limit must be between 1 and 200")
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.InvalidValue("offset", "offset must not be negative")
		}
		page.Offset = n
	}
	return page, nil
}

// HandleList handles GET /v1/users.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	users, total, err := h.UserService.List(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := authsdk.ListUsersResponse{
		Users: make([]authsdk.UserProfile, len(users)),
		Total: total,
	}
	for i, u := range users {
		out.Users[i] = toProfile(u.Profile())
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleActivate handles POST /v1/users/{id}/activate.
func (h *UsersHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.UserService.Activate(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(r.Context(), "user.activated")})
}

// HandleDeactivate handles POST /v1/users/{id}/deactivate.
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// An administrator locking themselves out leaves nobody to undo it.
	if id == actorID {
		h.fail(w, r, domain.ErrForbidden)
		return
	}
	if err := h.UserService.Deactivate(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "user.deactivated")})
}

// HandleAssignRole handles POST /v1/users/{id}/roles.
func (h *UsersHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := h.userID(w, r)
	if !ok {
		return
	}
	targetID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req authsdk.RoleAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.invalid(w, r, err)
		return
	}
	roleID, err := parseID(req.RoleID, "roleId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.UserService.AssignRole(ctx, actorID, targetID, roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "role.assigned")})
}

// HandleRemoveRole handles DELETE /v1/users/{id}/roles/{roleId}.
func (h *UsersHandler) HandleRemoveRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := h.userID(w, r)
	if !ok {
		return
	}
	targetID, err := parseID(r.PathValue("id"), "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	roleID, err := parseID(r.PathValue("roleId"), "roleId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.UserService.RemoveRole(ctx, actorID, targetID, roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: h.t(ctx, "role.removed")})
}
