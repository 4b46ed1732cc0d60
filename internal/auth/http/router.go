package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/i18n"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	catalog      *i18n.Catalog
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Limits Limits

	LoginService      *service.LoginService
	AuthService       *service.AuthService
	UserService       *service.UserService
	RolesService      *service.RolesService
	PermissionService *service.PermissionService
	BootstrapService  *service.BootstrapService
	Authz             *service.AuthorizationService
}

func NewRouter(
	verifier *jwtx.Verifier,
	catalog *i18n.Catalog,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		catalog:      catalog,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		catalog.Middleware,
	}

	return r
}

// Limits are the rate-limit profiles the routes draw from.
type Limits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

func DefaultLimits() Limits {
	return Limits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Public:   httpx.PublicLimit,
	}
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerOtp()
	r.registerTwoFactor()
	r.registerEmail()
	r.registerAccount()
	r.registerUsers()
	r.registerRoles()
	r.registerPermissions()
	r.registerBootstrap()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) newResponder() responder {
	return responder{Translator: r.catalog}
}

// secured wraps h with bearer authentication and a per-user limit.
func (r *Router) secured(h http.Handler, limit httpx.RateLimitConfig, mws ...httpx.Middleware) http.Handler {
	chain := append([]httpx.Middleware{
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(limit),
	}, mws...)
	return httpx.Chain(h, chain...)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{responder: r.newResponder(), LoginService: r.LoginService}

	// Keyed on IP and email so one account cannot be hammered from one host.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/login/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactor),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "challengeToken"),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout/all",
		r.secured(http.HandlerFunc(h.HandleLogoutAll), r.Limits.Moderate))
}

func (r *Router) registerOtp() {
	h := &OtpHandler{responder: r.newResponder(), LoginService: r.LoginService}

	r.Mux.Handle("POST /v1/auth/otp/request",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "challengeToken"),
		),
	)
	r.Mux.Handle("POST /v1/auth/otp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "challengeToken"),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{responder: r.newResponder(), AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/2fa/setup", r.secured(http.HandlerFunc(h.HandleSetup), r.Limits.Moderate))
	// Strict: code guessing.
	r.Mux.Handle("POST /v1/auth/2fa/verify", r.secured(http.HandlerFunc(h.HandleVerify), r.Limits.Strict))
	r.Mux.Handle("POST /v1/auth/2fa/disable", r.secured(http.HandlerFunc(h.HandleDisable), r.Limits.Moderate))
}

func (r *Router) registerEmail() {
	h := &EmailHandler{responder: r.newResponder(), AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/email/send",
		httpx.Chain(http.HandlerFunc(h.HandleSend),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/email/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		responder:   r.newResponder(),
		UserService: r.UserService,
		AuthService: r.AuthService,
	}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/change",
		r.secured(http.HandlerFunc(h.HandleChangePassword), r.Limits.Strict))
	r.Mux.Handle("POST /v1/auth/email/change",
		r.secured(http.HandlerFunc(h.HandleChangeEmail), r.Limits.Strict))
}

func (r *Router) registerUsers() {
	me := &MeHandler{responder: r.newResponder(), UserService: r.UserService}
	r.Mux.Handle("GET /v1/auth/me", r.secured(me, r.Limits.Moderate))

	h := &UsersHandler{responder: r.newResponder(), UserService: r.UserService}
	manage := r.requireAccess("user", domain.ActionManage)

	r.Mux.Handle("GET /v1/users",
		r.secured(http.HandlerFunc(h.HandleList), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/users/{id}/activate",
		r.secured(http.HandlerFunc(h.HandleActivate), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/users/{id}/deactivate",
		r.secured(http.HandlerFunc(h.HandleDeactivate), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/users/{id}/roles",
		r.secured(http.HandlerFunc(h.HandleAssignRole), r.Limits.Moderate, manage))
	r.Mux.Handle("DELETE /v1/users/{id}/roles/{roleId}",
		r.secured(http.HandlerFunc(h.HandleRemoveRole), r.Limits.Moderate, manage))
}

func (r *Router) registerRoles() {
	h := &RolesHandler{responder: r.newResponder(), RolesService: r.RolesService}
	manage := r.requireAccess("role", domain.ActionManage)

	// Listing only needs the claim; writes re-check the stored roles.
	r.Mux.Handle("GET /v1/roles",
		r.secured(http.HandlerFunc(h.HandleList), r.Limits.Moderate,
			httpx.RequireAnyPermission(service.PermissionRoleManage)))
	r.Mux.Handle("POST /v1/roles",
		r.secured(http.HandlerFunc(h.HandleCreate), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/roles/{id}/permissions",
		r.secured(http.HandlerFunc(h.HandleAddPermission), r.Limits.Moderate, manage))
	r.Mux.Handle("DELETE /v1/roles/{id}/permissions/{permissionId}",
		r.secured(http.HandlerFunc(h.HandleRemovePermission), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/roles/{id}/default",
		r.secured(http.HandlerFunc(h.HandleSetDefault), r.Limits.Moderate, manage))
	r.Mux.Handle("DELETE /v1/roles/{id}",
		r.secured(http.HandlerFunc(h.HandleDelete), r.Limits.Moderate,
			r.requireAccess("role", domain.ActionDelete)))
}

func (r *Router) registerPermissions() {
	h := &PermissionsHandler{responder: r.newResponder(), PermissionService: r.PermissionService}
	manage := r.requireAccess("permission", domain.ActionManage)

	r.Mux.Handle("GET /v1/permissions",
		r.secured(http.HandlerFunc(h.HandleList), r.Limits.Moderate, manage))
	r.Mux.Handle("POST /v1/permissions",
		r.secured(http.HandlerFunc(h.HandleCreate), r.Limits.Moderate, manage))
}

// registerBootstrap is skipped entirely when no bootstrap service is wired.
func (r *Router) registerBootstrap() {
	if r.BootstrapService == nil {
		return
	}
	h := &BootstrapHandler{responder: r.newResponder(), BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(h, httpx.RateLimitByIP(r.Limits.Strict)))
}

func (r *Router) registerSystem() {
	h := &HealthHandler{
		Started:  r.startTime,
		Version:  r.buildVersion,
		Store:    r.store,
		Verifier: r.verifier,
	}

	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.Live), httpx.RateLimitByIP(r.Limits.Public)))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.Ready), httpx.RateLimitByIP(r.Limits.Public)))
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.verifier),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
