package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/httpx"
)

// MeHandler returns the authenticated user's profile.
type MeHandler struct {
	responder
	UserService *service.UserService
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	profile, err := h.UserService.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toProfile(profile))
}
