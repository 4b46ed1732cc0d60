package authsdk

import (
	"time"

	"github.com/aussiebroadwan/parish/pkg/jwtx"
)

// ============================================================================
// Errors
// ============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	// Error is a stable machine-readable code, e.g. "otp_expired".
	Error string `json:"error"`

	// ErrorDescription is a localized human-readable message.
	ErrorDescription string `json:"error_description,omitempty"`

	// Field names the offending input for validation failures.
	Field string `json:"field,omitempty"`
}

// ============================================================================
// Login
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of every successful login-family call. Exactly
// one of the three shapes is populated:
//
//   - RequiresEmailVerification with UserID and Email
//   - RequiresOtp with UserID and ChallengeToken
//   - AccessToken, RefreshToken, ExpiresIn and User
type LoginResponse struct {
	RequiresEmailVerification bool   `json:"requiresEmailVerification,omitempty"`
	RequiresOtp               bool   `json:"requiresOtp,omitempty"`
	UserID                    string `json:"userId,omitempty"`
	Email                     string `json:"email,omitempty"`

	// ChallengeToken identifies the pending login at the two-factor gate.
	// Pass it to CompleteTwoFactor, RequestOtp and VerifyOtp.
	ChallengeToken string `json:"challengeToken,omitempty"`

	AccessToken  string       `json:"accessToken,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresIn    int64        `json:"expiresIn,omitempty"`
	User         *UserProfile `json:"user,omitempty"`

	Message string `json:"message"`
}

// Authenticated reports whether the response carries tokens.
func (r *LoginResponse) Authenticated() bool {
	return r != nil && r.AccessToken != ""
}

// TwoFactorLoginRequest is the body of POST /v1/auth/login/2fa.
type TwoFactorLoginRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
}

// RefreshRequest is the body of POST /v1/auth/refresh and /v1/auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ============================================================================
// One-time passwords and two-factor
// ============================================================================

// OtpRequest is the body of POST /v1/auth/otp/request.
type OtpRequest struct {
	ChallengeToken string `json:"challengeToken"`
}

// OtpVerifyRequest is the body of POST /v1/auth/otp/verify.
type OtpVerifyRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
}

// CodeRequest carries a single code for the authenticated user.
type CodeRequest struct {
	Code string `json:"code"`
}

// VerifyResponse reports the outcome of a code check.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// TwoFactorSetupResponse is returned once, when the permanent secret is
// created.
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OtpAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
	Message    string `json:"message"`
}

// ============================================================================
// Email verification
// ============================================================================

// EmailRequest is the body of POST /v1/auth/email/send.
type EmailRequest struct {
	Email string `json:"email"`
}

// EmailVerifyRequest is the body of POST /v1/auth/email/verify.
type EmailVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// MessageResponse is returned by calls with no other payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Users and roles
// ============================================================================

// UserProfile is the public view of a user.
type UserProfile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Active           bool       `json:"active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	Roles            []string   `json:"roles"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RoleInfo describes a role and the permissions it grants.
type RoleInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsAdmin     bool     `json:"is_admin"`
	IsDefault   bool     `json:"is_default"`
	Permissions []string `json:"permissions"`
}

// ListRolesResponse is the body of GET /v1/roles.
type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// ListUsersResponse is one page of GET /v1/users.
type ListUsersResponse struct {
	Users []UserProfile `json:"users"`
	Total int           `json:"total"`
}

// RoleAssignRequest is the body of POST /v1/users/{id}/roles.
type RoleAssignRequest struct {
	RoleID string `json:"roleId"`
}

// CreateRoleRequest is the body of POST /v1/roles.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
}

// RolePermissionRequest is the body of POST /v1/roles/{id}/permissions.
type RolePermissionRequest struct {
	PermissionID string `json:"permissionId"`
}

// PermissionInfo describes one resource:action permission.
type PermissionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// ListPermissionsResponse is the body of GET /v1/permissions.
type ListPermissionsResponse struct {
	Permissions []PermissionInfo `json:"permissions"`
}

// CreatePermissionRequest is the body of POST /v1/permissions.
type CreatePermissionRequest struct {
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// ============================================================================
// Accounts
// ============================================================================

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PasswordResetRequest is the body of POST /v1/auth/password/reset.
type PasswordResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// PasswordChangeRequest is the body of POST /v1/auth/password/change.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ============================================================================
// Bootstrap
// ============================================================================

// BootstrapTokenHeader carries the bootstrap token on POST /v1/bootstrap.
const BootstrapTokenHeader = "X-Bootstrap-Token"

// BootstrapRole declares one role to create during bootstrap.
type BootstrapRole struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsAdmin     bool     `json:"isAdmin"`
	IsDefault   bool     `json:"isDefault"`
	Permissions []string `json:"permissions"`
}

// BootstrapRequest is the body of POST /v1/bootstrap. When Roles is empty
// the service seeds its default admin and member roles.
type BootstrapRequest struct {
	AdminEmail     string          `json:"adminEmail"`
	AdminPassword  string          `json:"adminPassword"`
	AdminFirstName string          `json:"adminFirstName"`
	AdminLastName  string          `json:"adminLastName"`
	Roles          []BootstrapRole `json:"roles,omitempty"`
}

// BootstrapResponse maps each created role name to its id.
type BootstrapResponse struct {
	AdminUserID string            `json:"adminUserId"`
	Roles       map[string]string `json:"roles"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set published at
// GET /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
