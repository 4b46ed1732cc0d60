package http_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	authhttp "github.com/aussiebroadwan/parish/internal/auth/http"
	"github.com/aussiebroadwan/parish/internal/auth/i18n"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	password       = "Secr3t!pass"
	bootstrapToken = "bootstrap-token-0123"
)

// inbox records the last code sent to each address.
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *inbox) put(email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = map[string]string{}
	}
	n.codes[email] = code
	return nil
}

func (n *inbox) last(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	code, ok := n.codes[email]
	require.True(t, ok, "nothing sent to %s", email)
	return code
}

func (n *inbox) SendLoginCode(_ context.Context, email, code string) error {
	return n.put(email, code)
}

func (n *inbox) SendEmailVerificationCode(_ context.Context, email, code string) error {
	return n.put(email, code)
}

func (n *inbox) SendPasswordReset(_ context.Context, email, token string) error {
	return n.put(email, token)
}

type server struct {
	store  *sqlite.Store
	inbox  *inbox
	totp   *service.PquernaTOTP
	hasher *cryptox.Hasher
	users  *service.UserService
	roles  *service.RolesService
	perms  *service.PermissionService
	client *authsdk.SDKClient
}

func newServer(t *testing.T) *server {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("test", priv)
	require.NoError(t, err)
	verifier := jwtx.NewVerifier(jwtx.VerifyOptions{Issuer: "https://auth.test", Audience: []string{"parish"}})
	verifier.AddSigner(signer)

	catalog, err := i18n.LoadEmbedded("")
	require.NoError(t, err)

	s := &server{
		store:  st,
		inbox:  &inbox{},
		totp:   &service.PquernaTOTP{Issuer: "Parish", Skew: 1},
		hasher: cryptox.NewHasher("pepper"),
	}

	bus := events.NewBus((&service.EventService{Store: st, Logger: slogx.Discard()}).Handlers())
	authz := &service.AuthorizationService{}
	auth := &service.AuthService{
		Store:    st,
		Secrets:  service.CryptoSecrets{},
		TOTP:     s.totp,
		Notifier: s.inbox,
		Events:   bus,
	}
	s.users = &service.UserService{
		Store:    st,
		Hasher:   s.hasher,
		Secrets:  service.CryptoSecrets{},
		Notifier: s.inbox,
		Authz:    authz,
		Events:   bus,
	}
	validator := service.NewPermissionValidator(service.DefaultPermissionConflicts())
	s.roles = &service.RolesService{Store: st, Authz: authz, Validator: validator, Events: bus}
	s.perms = &service.PermissionService{Store: st}
	login := &service.LoginService{
		Users: s.users,
		Auth:  auth,
		Store: st,
		Tokens: &service.JWTIssuer{
			Signer:    signer,
			Auth:      auth,
			Issuer:    "https://auth.test",
			Audience:  []string{"parish"},
			AccessTTL: 15 * time.Minute,
		},
		Translator: catalog,
	}

	router := authhttp.NewRouter(verifier, catalog, "test", st, slogx.Discard())
	// Whole flows run from one address; the attempt cap is under test, not the limiter.
	router.Limits.Strict = httpx.PerMinute(60)
	router.LoginService = login
	router.AuthService = auth
	router.UserService = s.users
	router.RolesService = s.roles
	router.PermissionService = s.perms
	router.Authz = authz
	router.BootstrapService = &service.BootstrapService{
		Store:     st,
		Hasher:    s.hasher,
		Validator: validator,
		Events:    bus,
		Token:     bootstrapToken,
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	s.client = authsdk.NewSDKClient(srv.URL)
	s.client.HTTPClient = srv.Client()
	return s
}

func (s *server) user(t *testing.T, email string, roles ...*domain.Role) *domain.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := domain.NewUser(idx.NewAt(now), domain.MustEmail(email), hash,
		domain.MustName("Test"), domain.MustName("User"), now)
	for _, r := range roles {
		require.NoError(t, u.AddRole(r, now))
	}
	require.NoError(t, s.store.Users().Create(context.Background(), u))
	return u
}

func (s *server) verified(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.client.SendEmailVerification(ctx, email)
	require.NoError(t, err)
	_, err = s.client.VerifyEmail(ctx, email, s.inbox.last(t, email))
	require.NoError(t, err)
}

// twoFactorUser creates a verified user with an authenticator enrolled and
// returns the secret with the session used to enrol it.
func (s *server) twoFactorUser(t *testing.T, email string) (*domain.User, string, *authsdk.Session) {
	t.Helper()
	ctx := context.Background()
	u := s.user(t, email)
	s.verified(t, email)

	session, _, err := s.client.AuthenticateWithPassword(ctx, email, password)
	require.NoError(t, err)
	setup, err := session.SetupTwoFactor(ctx)
	require.NoError(t, err)
	return u, setup.Secret, session
}

func requireAPIError(t *testing.T, err error, status int, code string) *authsdk.APIError {
	t.Helper()
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "want *APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestLoginFlow(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	s.user(t, "ana@example.com")

	resp, err := s.client.Login(ctx, "ana@example.com", password)
	require.NoError(t, err)
	require.True(t, resp.RequiresEmailVerification)
	require.Equal(t, "ana@example.com", resp.Email)
	require.False(t, resp.Authenticated())

	s.verified(t, "ana@example.com")

	session, resp, err := s.client.AuthenticateWithPassword(ctx, "ana@example.com", password)
	require.NoError(t, err)
	require.Equal(t, "Login successful", resp.Message)
	require.Equal(t, int64(900), resp.ExpiresIn)
	require.Equal(t, "ana@example.com", resp.User.Email)

	// A resource server can check the token offline from the published keys.
	verifier, err := s.client.NewVerifier(ctx, jwtx.VerifyOptions{Issuer: "https://auth.test", Audience: []string{"parish"}})
	require.NoError(t, err)
	claims, err := verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.Subject)
	require.True(t, claims.EmailVerified)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", me.Email)
	require.NotNil(t, me.LastLoginAt)

	refreshed, err := s.client.Refresh(ctx, session.RefreshToken())
	require.NoError(t, err)
	require.Equal(t, "Session refreshed", refreshed.Message)
	require.NotEqual(t, session.RefreshToken(), refreshed.RefreshToken)

	// The first refresh token was superseded.
	_, err = s.client.Refresh(ctx, session.RefreshToken())
	requireAPIError(t, err, http.StatusUnauthorized, "refresh_token_invalid")
}

func TestLoginRejectsWithoutSayingWhy(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	s.user(t, "ben@example.com")

	_, err := s.client.Login(ctx, "ben@example.com", "Wr0ng!pass")
	wrongPassword := requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = s.client.Login(ctx, "nobody@example.com", password)
	unknownEmail := requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	require.Equal(t, wrongPassword.Description, unknownEmail.Description)
	require.Empty(t, unknownEmail.Field)

	s.client.Language = "es-MX"
	_, err = s.client.Login(ctx, "ben@example.com", "Wr0ng!pass")
	spanish := requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")
	require.Equal(t, "Correo o contraseña incorrectos", spanish.Description)
}

func TestTwoFactorLogin(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	u := s.user(t, "cai@example.com")
	s.verified(t, "cai@example.com")

	session, _, err := s.client.AuthenticateWithPassword(ctx, "cai@example.com", password)
	require.NoError(t, err)

	setup, err := session.SetupTwoFactor(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.True(t, strings.HasPrefix(setup.OtpAuthURL, "otpauth://totp/"))
	require.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))

	_, err = session.SetupTwoFactor(ctx)
	requireAPIError(t, err, http.StatusUnprocessableEntity, "two_factor_enabled")

	code, err := s.totp.Code(setup.Secret, time.Now())
	require.NoError(t, err)
	check, err := session.VerifyTwoFactor(ctx, code)
	require.NoError(t, err)
	require.True(t, check.Valid)

	resp, err := s.client.Login(ctx, "cai@example.com", password)
	require.NoError(t, err)
	require.True(t, resp.RequiresOtp)
	require.Equal(t, u.ID.String(), resp.UserID)
	require.NotEmpty(t, resp.ChallengeToken)
	require.Equal(t, int64(300), resp.ExpiresIn)

	// The user id from the response does not open the gate.
	_, err = s.client.CompleteTwoFactor(ctx, resp.UserID, code)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
	_, err = s.client.CompleteTwoFactor(ctx, "garbage", code)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")

	_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, "not-a-code")
	requireAPIError(t, err, http.StatusUnauthorized, "otp_invalid")

	// Already spent on /2fa/verify.
	_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, code)
	requireAPIError(t, err, http.StatusUnauthorized, "otp_invalid")

	next, err := s.totp.Code(setup.Secret, time.Now().Add(30*time.Second))
	require.NoError(t, err)
	done, err := s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, next)
	require.NoError(t, err)
	require.True(t, done.Authenticated())
	require.True(t, done.User.TwoFactorEnabled)

	_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, next)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
}

func TestTwoFactorLoginNeedsVerifiedEmail(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	u, secret, session := s.twoFactorUser(t, "cyd@example.com")

	// Moving to an unverified address closes the two-factor gate.
	_, err := session.ChangeEmail(ctx, "cyd.new@example.com")
	require.NoError(t, err)

	resp, err := s.client.Login(ctx, "cyd.new@example.com", password)
	require.NoError(t, err)
	require.True(t, resp.RequiresEmailVerification)
	require.Empty(t, resp.ChallengeToken)

	code, err := s.totp.Code(secret, time.Now())
	require.NoError(t, err)
	_, err = s.client.CompleteTwoFactor(ctx, u.ID.String(), code)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
}

func TestTwoFactorAttemptCap(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	_, secret, _ := s.twoFactorUser(t, "cal@example.com")

	resp, err := s.client.Login(ctx, "cal@example.com", password)
	require.NoError(t, err)
	require.True(t, resp.RequiresOtp)

	for i := 1; i < 5; i++ {
		_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, "abcdef")
		requireAPIError(t, err, http.StatusUnauthorized, "otp_invalid")
	}
	_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, "abcdef")
	requireAPIError(t, err, http.StatusUnauthorized, "too_many_attempts")

	// The challenge is gone; even the right code is refused.
	code, err := s.totp.Code(secret, time.Now())
	require.NoError(t, err)
	_, err = s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, code)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
}

func TestDisableTwoFactorNeedsCode(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	_, secret, session := s.twoFactorUser(t, "gus@example.com")

	_, err := session.DisableTwoFactor(ctx, "")
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)

	_, err = session.DisableTwoFactor(ctx, "abcdef")
	requireAPIError(t, err, http.StatusUnauthorized, "otp_invalid")

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.True(t, me.TwoFactorEnabled)

	code, err := s.totp.Code(secret, time.Now())
	require.NoError(t, err)
	_, err = session.DisableTwoFactor(ctx, code)
	require.NoError(t, err)

	me, err = session.Me(ctx)
	require.NoError(t, err)
	require.False(t, me.TwoFactorEnabled)

	_, err = session.DisableTwoFactor(ctx, code)
	requireAPIError(t, err, http.StatusUnprocessableEntity, "two_factor_not_enabled")
}

func TestOtpByNotifier(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	u, _, _ := s.twoFactorUser(t, "dee@example.com")

	resp, err := s.client.Login(ctx, "dee@example.com", password)
	require.NoError(t, err)
	require.True(t, resp.RequiresOtp)

	sent, err := s.client.RequestOtp(ctx, resp.ChallengeToken)
	require.NoError(t, err)
	require.Equal(t, "A verification code has been generated", sent.Message)
	code := s.inbox.last(t, "dee@example.com")

	res, err := s.client.VerifyOtp(ctx, resp.ChallengeToken, code)
	require.NoError(t, err)
	require.True(t, res.Valid)

	// Checking the code does not spend it.
	done, err := s.client.CompleteTwoFactor(ctx, resp.ChallengeToken, code)
	require.NoError(t, err)
	require.True(t, done.Authenticated())

	_, err = s.client.RequestOtp(ctx, resp.ChallengeToken)
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
	_, err = s.client.RequestOtp(ctx, u.ID.String())
	requireAPIError(t, err, http.StatusUnauthorized, "challenge_invalid")
}

func TestEmailVerificationErrors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.client.SendEmailVerification(ctx, "not-an-email")
	apiErr := requireAPIError(t, err, http.StatusBadRequest, "invalid_value_object")
	require.Equal(t, "email", apiErr.Field)

	_, err = s.client.SendEmailVerification(ctx, "eve@example.com")
	require.NoError(t, err)

	_, err = s.client.VerifyEmail(ctx, "eve@example.com", "nope")
	requireAPIError(t, err, http.StatusUnauthorized, "otp_invalid")
}

func TestLogout(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	s.user(t, "fay@example.com")
	s.verified(t, "fay@example.com")

	session, _, err := s.client.AuthenticateWithPassword(ctx, "fay@example.com", password)
	require.NoError(t, err)
	token := session.RefreshToken()

	require.NoError(t, session.Logout(ctx))
	_, err = s.client.Refresh(ctx, token)
	requireAPIError(t, err, http.StatusUnauthorized, "refresh_token_invalid")

	// Unknown tokens are not reported.
	require.NoError(t, s.client.Logout(ctx, "never-issued"))

	session, _, err = s.client.AuthenticateWithPassword(ctx, "fay@example.com", password)
	require.NoError(t, err)
	token = session.RefreshToken()
	require.NoError(t, session.LogoutAll(ctx))
	_, err = s.client.Refresh(ctx, token)
	requireAPIError(t, err, http.StatusUnauthorized, "refresh_token_invalid")
}

func TestRolesRequirePermission(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	perm, err := s.perms.Create(ctx, "role", "manage", "")
	require.NoError(t, err)
	admin, err := s.roles.Create(ctx, "admin", "", true)
	require.NoError(t, err)
	admin, err = s.roles.AddPermission(ctx, admin.ID, perm.ID)
	require.NoError(t, err)
	member, err := s.roles.Create(ctx, "member", "", false)
	require.NoError(t, err)

	s.user(t, "root@example.com", admin)
	s.verified(t, "root@example.com")
	s.user(t, "joe@example.com", member)
	s.verified(t, "joe@example.com")

	joe, _, err := s.client.AuthenticateWithPassword(ctx, "joe@example.com", password)
	require.NoError(t, err)
	_, err = joe.ListRoles(ctx)
	requireAPIError(t, err, http.StatusForbidden, "insufficient_permission")

	root, _, err := s.client.AuthenticateWithPassword(ctx, "root@example.com", password)
	require.NoError(t, err)
	list, err := root.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, list.Roles, 2)

	byName := map[string]authsdk.RoleInfo{}
	for _, r := range list.Roles {
		byName[r.Name] = r
	}
	require.Equal(t, []string{"role:manage"}, byName["admin"].Permissions)
	require.True(t, byName["admin"].IsAdmin)
}

func TestAuthenticatedRoutesNeedBearer(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	session := s.client.NewSessionFromTokens("not-a-jwt", "", 3600)
	_, err := session.Me(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")
}

func TestMalformedBody(t *testing.T) {
	s := newServer(t)

	req, err := http.NewRequest(http.MethodPost, s.client.BaseURL+"/v1/auth/login", strings.NewReader(`{"email": 1}`))
	require.NoError(t, err)
	resp, err := s.client.HTTPClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	live, err := s.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := s.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	jwks, err := s.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "test", jwks.Keys[0].Kid)
}
