package service

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	"github.com/aussiebroadwan/parish/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassword = "Secr3t!pass"

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fixedSecrets hands out predictable codes and tokens.
type fixedSecrets struct {
	mu   sync.Mutex
	code string
	n    int
}

func (s *fixedSecrets) Base32Secret() (string, error) { return cryptox.GenerateBase32Secret(20) }

func (s *fixedSecrets) NumericCode(digits int) (string, error) {
	if len(s.code) != digits {
		return "", fmt.Errorf("fixed code has %d digits, want %d", len(s.code), digits)
	}
	return s.code, nil
}

func (s *fixedSecrets) OpaqueToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("token-%d", s.n), nil
}

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Issue(ctx context.Context, u *domain.User, permissions []string, emailVerified bool) (TokenPair, error) {
	args := m.Called(ctx, u, permissions, emailVerified)
	return args.Get(0).(TokenPair), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendLoginCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockNotifier) SendEmailVerificationCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

// sameSet matches a permission list by content, ignoring order.
func sameSet(want ...string) any {
	return mock.MatchedBy(func(got []string) bool {
		a, b := slices.Clone(got), slices.Clone(want)
		slices.Sort(a)
		slices.Sort(b)
		return slices.Equal(a, b)
	})
}

type testEnv struct {
	store   *sqlite.Store
	clock   *testClock
	secrets *fixedSecrets
	totp    *PquernaTOTP
	hasher  *cryptox.Hasher
	bus     *events.Bus

	auth   *AuthService
	users  *UserService
	roles  *RolesService
	perms  *PermissionService
	login  *LoginService
	issuer *mockIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	e := &testEnv{
		store:   s,
		clock:   &testClock{t: t0},
		secrets: &fixedSecrets{code: "424242"},
		totp:    &PquernaTOTP{Issuer: "Parish", Period: 30, Digits: 6, Skew: 1},
		hasher:  cryptox.NewHasher("test-pepper"),
		issuer:  &mockIssuer{},
	}
	eventSvc := &EventService{Store: s, Logger: slogx.Discard()}
	e.bus = events.NewBus(eventSvc.Handlers())

	authz := &AuthorizationService{}
	e.auth = &AuthService{
		Store:   s,
		Clock:   e.clock,
		Secrets: e.secrets,
		TOTP:    e.totp,
		Events:  e.bus,
		Config: AuthConfig{
			OtpExpiry:               5 * time.Minute,
			RefreshTokenTTL:         7 * 24 * time.Hour,
			EmailVerificationExpiry: 15 * time.Minute,
			EmailCodeDigits:         6,
		},
	}
	e.users = &UserService{
		Store:            s,
		Hasher:           e.hasher,
		Clock:            e.clock,
		Secrets:          e.secrets,
		Authz:            authz,
		Events:           e.bus,
		PasswordResetTTL: time.Hour,
	}
	e.roles = &RolesService{
		Store:     s,
		Clock:     e.clock,
		Authz:     authz,
		Validator: NewPermissionValidator(DefaultPermissionConflicts()),
		Events:    e.bus,
	}
	e.perms = &PermissionService{Store: s, Clock: e.clock}
	e.login = &LoginService{
		Users:  e.users,
		Auth:   e.auth,
		Store:  s,
		Tokens: e.issuer,
	}
	return e
}

func (e *testEnv) permission(t *testing.T, name string) *domain.Permission {
	t.Helper()
	ra, err := domain.ParseResourceAction(name)
	require.NoError(t, err)
	p, err := e.perms.Create(context.Background(), ra.Resource(), string(ra.Action()), "")
	require.NoError(t, err)
	return p
}

func (e *testEnv) role(t *testing.T, name string, admin bool, perms ...string) *domain.Role {
	t.Helper()
	ctx := context.Background()
	r, err := e.roles.Create(ctx, name, "", admin)
	require.NoError(t, err)
	for _, name := range perms {
		p, err := e.perms.GetByName(ctx, name)
		if err != nil {
			p = e.permission(t, name)
		}
		r, err = e.roles.AddPermission(ctx, r.ID, p.ID)
		require.NoError(t, err)
	}
	return r
}

// user stores an active user holding roles, bypassing assignment policy.
func (e *testEnv) user(t *testing.T, email string, roles ...*domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	now := e.clock.Now()
	u := domain.NewUser(idx.NewAt(now), domain.MustEmail(email), hash,
		domain.MustName("Test"), domain.MustName("User"), now)
	for _, r := range roles {
		require.NoError(t, u.AddRole(r, now))
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	u.DrainEvents()
	return u
}

func (e *testEnv) verifyEmail(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.auth.SendEmailVerification(ctx, email))
	require.NoError(t, e.auth.VerifyEmailCode(ctx, email, e.secrets.code))
}

func (e *testEnv) reload(t *testing.T, id idx.ID) *domain.User {
	t.Helper()
	u, err := e.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
