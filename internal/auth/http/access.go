package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

func (r *Router) authz() *service.AuthorizationService {
	if r.Authz == nil {
		return &service.AuthorizationService{}
	}
	return r.Authz
}

// requireAccess checks resource:action against the caller's current roles
// rather than the claims in the token, so a revoked role or a deactivated
// account takes effect before the access token expires. It must run after
// httpx.AuthnMiddleware.
func (r *Router) requireAccess(resource string, action domain.Action) httpx.Middleware {
	rs := r.newResponder()
	authz := r.authz()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			userID, ok := rs.userID(w, req)
			if !ok {
				return
			}

			u, err := r.UserService.GetByID(ctx, userID)
			if err != nil {
				if domain.KindOf(err) == domain.KindNotFound {
					err = domain.ErrForbidden
				}
				rs.fail(w, req, err)
				return
			}

			logger := slogx.FromContext(ctx)
			if !authz.CanAccessResource(u, resource, string(action)) {
				logger.Warn("access denied",
					"resource", resource,
					"action", string(action),
				)
				rs.fail(w, req, domain.ErrForbidden)
				return
			}

			if authz.RequiresAudit(u, resource) {
				logger.Info("audit",
					"resource", resource,
					"action", string(action),
					"method", req.Method,
					"path", req.URL.Path,
					"security_level", string(authz.SecurityLevel(u)),
				)
			}

			next.ServeHTTP(w, req)
		})
	}
}
