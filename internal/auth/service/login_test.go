package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var issued = TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 15 * time.Minute}

func TestLoginUnknownEmail(t *testing.T) {
	e := newTestEnv(t)
	bystander := e.user(t, "known@example.com")

	res, err := e.login.Login(context.Background(), "nobody@example.com", testPassword)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Nil(t, res)
	require.Nil(t, e.reload(t, bystander.ID).LastLoginAt)
	e.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "known@example.com")

	_, errWrong := e.login.Login(context.Background(), "known@example.com", "Wr0ng!pass")
	_, errUnknown := e.login.Login(context.Background(), "other@example.com", "Wr0ng!pass")
	require.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error(), "failure does not reveal which part was wrong")
	require.Nil(t, e.reload(t, u.ID).LastLoginAt)
}

func TestLoginInactiveUser(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "gone@example.com")
	require.NoError(t, e.users.Deactivate(context.Background(), u.ID))

	_, err := e.login.Login(context.Background(), "gone@example.com", testPassword)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginEmailUnverified(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "new@example.com")
	e.clock.Advance(time.Minute)

	res, err := e.login.Login(context.Background(), "NEW@example.com", testPassword)
	require.NoError(t, err)

	got, ok := res.(*EmailVerificationRequired)
	require.True(t, ok, "got %T", res)
	require.True(t, got.RequiresEmailVerification)
	require.Equal(t, u.ID, got.UserID)
	require.Equal(t, "new@example.com", got.Email)
	require.Equal(t, MsgEmailVerificationRequired, got.Message)

	require.Equal(t, t0.Add(time.Minute), *e.reload(t, u.ID).LastLoginAt)
	e.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginEmailGateBeforeTwoFactor(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "both@example.com")
	_, err := e.auth.Setup2FA(context.Background(), u.ID)
	require.NoError(t, err)

	res, err := e.login.Login(context.Background(), "both@example.com", testPassword)
	require.NoError(t, err)
	require.IsType(t, &EmailVerificationRequired{}, res)
}

func TestLoginOtpRequired(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "tfa@example.com")
	e.verifyEmail(t, "tfa@example.com")
	_, err := e.auth.Setup2FA(context.Background(), u.ID)
	require.NoError(t, err)

	res, err := e.login.Login(context.Background(), "tfa@example.com", testPassword)
	require.NoError(t, err)

	got, ok := res.(*OtpRequired)
	require.True(t, ok, "got %T", res)
	require.True(t, got.RequiresOtp)
	require.Equal(t, u.ID, got.UserID)
	require.NotEmpty(t, got.ChallengeToken)
	require.NotEqual(t, u.ID.String(), got.ChallengeToken)
	require.EqualValues(t, 300, got.ExpiresIn)
	require.NotNil(t, e.reload(t, u.ID).LastLoginAt)
	e.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginSuccessSingleRole(t *testing.T) {
	e := newTestEnv(t)
	reader := e.role(t, "reader", false, "user:read")
	u := e.user(t, "ok@example.com", reader)
	e.verifyEmail(t, "ok@example.com")

	e.issuer.On("Issue", mock.Anything, mock.MatchedBy(func(got *domain.User) bool { return got.ID == u.ID }),
		[]string{"user:read"}, true).Return(issued, nil).Once()

	res, err := e.login.Login(context.Background(), "ok@example.com", testPassword)
	require.NoError(t, err)

	got, ok := res.(*LoginSuccess)
	require.True(t, ok, "got %T", res)
	require.Equal(t, "access", got.AccessToken)
	require.Equal(t, "refresh", got.RefreshToken)
	require.EqualValues(t, 900, got.ExpiresIn)
	require.Equal(t, u.ID.String(), got.User.ID)
	require.Equal(t, []string{"reader"}, got.User.Roles)
	require.NotNil(t, got.User.LastLoginAt)
	require.Equal(t, MsgLoginSuccess, got.Message)
	e.issuer.AssertExpectations(t)
}

func TestLoginPermissionUnion(t *testing.T) {
	for _, order := range []string{"r1-first", "r2-first"} {
		t.Run(order, func(t *testing.T) {
			e := newTestEnv(t)
			r1 := e.role(t, "r1", false, "user:read", "user:write")
			r2 := e.role(t, "r2", false, "user:write", "user:update")
			roles := []*domain.Role{r1, r2}
			if order == "r2-first" {
				roles = []*domain.Role{r2, r1}
			}
			e.user(t, "union@example.com", roles...)
			e.verifyEmail(t, "union@example.com")

			e.issuer.On("Issue", mock.Anything, mock.Anything,
				sameSet("user:read", "user:write", "user:update"), true).Return(issued, nil).Once()

			res, err := e.login.Login(context.Background(), "union@example.com", testPassword)
			require.NoError(t, err)
			require.IsType(t, &LoginSuccess{}, res)
			e.issuer.AssertExpectations(t)
		})
	}
}

func TestLoginReadsCurrentRolePermissions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	r := e.role(t, "staff", false, "user:read", "user:write")
	e.user(t, "fresh@example.com", r)
	e.verifyEmail(t, "fresh@example.com")

	write, err := e.perms.GetByName(ctx, "user:write")
	require.NoError(t, err)
	_, err = e.roles.RemovePermission(ctx, r.ID, write.ID)
	require.NoError(t, err)

	e.issuer.On("Issue", mock.Anything, mock.Anything, []string{"user:read"}, true).Return(issued, nil).Once()
	_, err = e.login.Login(ctx, "fresh@example.com", testPassword)
	require.NoError(t, err)
	e.issuer.AssertExpectations(t)
}

// challengeFor logs in and returns the token of the two-factor challenge.
func (e *testEnv) challengeFor(t *testing.T, email string) string {
	t.Helper()
	res, err := e.login.Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	got, ok := res.(*OtpRequired)
	require.True(t, ok, "got %T", res)
	return got.ChallengeToken
}

func TestCompleteTwoFactor(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	r := e.role(t, "member", false, "profile:read")
	u := e.user(t, "otp@example.com", r)
	e.verifyEmail(t, "otp@example.com")
	setup, err := e.auth.Setup2FA(ctx, u.ID)
	require.NoError(t, err)

	t.Run("wrong code", func(t *testing.T) {
		token := e.challengeFor(t, "otp@example.com")
		_, err := e.login.CompleteTwoFactor(ctx, token, "not-a-code")
		require.ErrorIs(t, err, domain.ErrOtpInvalid)
	})

	t.Run("user id is not a challenge", func(t *testing.T) {
		_, err := e.login.CompleteTwoFactor(ctx, u.ID.String(), "123456")
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
		_, err = e.login.CompleteTwoFactor(ctx, "", "123456")
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
	})

	t.Run("authenticator code", func(t *testing.T) {
		token := e.challengeFor(t, "otp@example.com")
		code, err := e.totp.Code(setup.Secret, e.clock.Now())
		require.NoError(t, err)
		e.issuer.On("Issue", mock.Anything, mock.Anything, []string{"profile:read"}, true).Return(issued, nil).Once()

		res, err := e.login.CompleteTwoFactor(ctx, token, code)
		require.NoError(t, err)
		require.Equal(t, "access", res.AccessToken)
		e.issuer.AssertExpectations(t)

		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrChallengeInvalid, "a challenge completes once")
	})

	t.Run("authenticator code replayed", func(t *testing.T) {
		token := e.challengeFor(t, "otp@example.com")
		code, err := e.totp.Code(setup.Secret, e.clock.Now())
		require.NoError(t, err)
		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrOtpInvalid)
	})

	t.Run("issued otp", func(t *testing.T) {
		e.clock.Advance(10 * time.Minute)
		token := e.challengeFor(t, "otp@example.com")
		code, err := e.auth.GenerateOtp(ctx, u.ID)
		require.NoError(t, err)
		e.clock.Advance(2 * time.Minute)

		e.issuer.On("Issue", mock.Anything, mock.Anything, []string{"profile:read"}, true).Return(issued, nil).Once()
		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.NoError(t, err)
		e.issuer.AssertExpectations(t)
	})

	t.Run("expired challenge", func(t *testing.T) {
		token := e.challengeFor(t, "otp@example.com")
		e.clock.Advance(5 * time.Minute)
		_, err := e.login.CompleteTwoFactor(ctx, token, "123456")
		require.ErrorIs(t, err, domain.ErrChallengeExpired)
		_, err = e.login.CompleteTwoFactor(ctx, token, "123456")
		require.ErrorIs(t, err, domain.ErrChallengeInvalid, "expired challenges are discarded")
	})

	t.Run("new login supersedes the open challenge", func(t *testing.T) {
		first := e.challengeFor(t, "otp@example.com")
		e.challengeFor(t, "otp@example.com")
		_, err := e.login.CompleteTwoFactor(ctx, first, "123456")
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
	})

	t.Run("two-factor disabled since login", func(t *testing.T) {
		e.clock.Advance(time.Minute)
		token := e.challengeFor(t, "otp@example.com")
		code, err := e.totp.Code(setup.Secret, e.clock.Now())
		require.NoError(t, err)
		require.NoError(t, e.auth.Disable2FA(ctx, u.ID, code))

		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrTwoFactorNotEnabled)
	})
}

func TestCompleteTwoFactorRequiresVerifiedEmail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.user(t, "unverified@example.com")
	setup, err := e.auth.Setup2FA(ctx, u.ID)
	require.NoError(t, err)
	code, err := e.totp.Code(setup.Secret, e.clock.Now())
	require.NoError(t, err)

	res, err := e.login.Login(ctx, "unverified@example.com", testPassword)
	require.NoError(t, err)
	require.IsType(t, &EmailVerificationRequired{}, res)

	// No challenge was opened, so neither the user id nor the first token
	// the generator would have handed out completes anything.
	for _, token := range []string{u.ID.String(), "token-1"} {
		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
	}

	t.Run("address changed after the challenge opened", func(t *testing.T) {
		e.verifyEmail(t, "unverified@example.com")
		token := e.challengeFor(t, "unverified@example.com")
		require.NoError(t, e.users.ChangeEmail(ctx, u.ID, "moved@example.com"))

		_, err := e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrEmailNotVerified)
		_, err = e.login.CompleteTwoFactor(ctx, token, code)
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
	})

	e.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteTwoFactorAttemptCap(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.user(t, "cap@example.com")
	e.verifyEmail(t, "cap@example.com")
	setup, err := e.auth.Setup2FA(ctx, u.ID)
	require.NoError(t, err)

	token := e.challengeFor(t, "cap@example.com")
	good, err := e.totp.Code(setup.Secret, e.clock.Now())
	require.NoError(t, err)
	wrong := "000000"
	if good == wrong {
		wrong = "111111"
	}

	for i := 1; i < domain.MaxTwoFactorAttempts; i++ {
		_, err := e.login.CompleteTwoFactor(ctx, token, wrong)
		require.ErrorIs(t, err, domain.ErrOtpInvalid, "attempt %d", i)
	}
	_, err = e.login.CompleteTwoFactor(ctx, token, wrong)
	require.ErrorIs(t, err, domain.ErrTooManyAttempts)

	// Guessing on without logging in again gets nowhere.
	for i := 0; i < 50; i++ {
		_, err := e.login.CompleteTwoFactor(ctx, token, wrong)
		require.ErrorIs(t, err, domain.ErrChallengeInvalid)
	}
	_, err = e.login.CompleteTwoFactor(ctx, token, good)
	require.ErrorIs(t, err, domain.ErrChallengeInvalid, "a right code cannot revive the challenge")
	e.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChallengeOtp(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	r := e.role(t, "member", false, "profile:read")
	u := e.user(t, "mail@example.com", r)
	e.verifyEmail(t, "mail@example.com")
	_, err := e.auth.Setup2FA(ctx, u.ID)
	require.NoError(t, err)

	n := &mockNotifier{}
	e.auth.Notifier = n
	var sent string
	n.On("SendLoginCode", mock.Anything, "mail@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sent = args.String(2) }).
		Return(nil).Once()

	token := e.challengeFor(t, "mail@example.com")
	require.NoError(t, e.login.SendChallengeOtp(ctx, token))
	n.AssertExpectations(t)

	wrong := "000000"
	if sent == wrong {
		wrong = "111111"
	}
	require.ErrorIs(t, e.login.CheckChallengeOtp(ctx, token, wrong), domain.ErrOtpInvalid)
	require.NoError(t, e.login.CheckChallengeOtp(ctx, token, sent))
	require.NoError(t, e.login.CheckChallengeOtp(ctx, token, sent), "checking does not spend the otp")

	e.issuer.On("Issue", mock.Anything, mock.Anything, []string{"profile:read"}, true).Return(issued, nil).Once()
	_, err = e.login.CompleteTwoFactor(ctx, token, sent)
	require.NoError(t, err)
	e.issuer.AssertExpectations(t)

	require.ErrorIs(t, e.login.SendChallengeOtp(ctx, token), domain.ErrChallengeInvalid)
}

func TestRefreshAndLogoutWithJWTIssuer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	key, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	priv, err := cryptox.ParseEd25519Key(key)
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("test", priv)
	require.NoError(t, err)
	e.login.Tokens = &JWTIssuer{
		Signer:    signer,
		Auth:      e.auth,
		Clock:     e.clock,
		Issuer:    "https://auth.test",
		Audience:  []string{"parish"},
		AccessTTL: 15 * time.Minute,
	}
	verifier := jwtx.NewVerifier(jwtx.VerifyOptions{
		Issuer:   "https://auth.test",
		Audience: []string{"parish"},
		Now:      e.clock.Now,
	})
	verifier.AddSigner(signer)

	r := e.role(t, "member", false, "profile:read")
	u := e.user(t, "jwt@example.com", r)
	e.verifyEmail(t, "jwt@example.com")

	res, err := e.login.Login(ctx, "jwt@example.com", testPassword)
	require.NoError(t, err)
	first := res.(*LoginSuccess)

	claims, err := verifier.Verify(first.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.Subject)
	require.Equal(t, []string{"profile:read"}, claims.Permissions)
	require.True(t, claims.EmailVerified)
	require.NotEmpty(t, claims.SID)

	e.clock.Advance(time.Minute)
	second, err := e.login.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, MsgTokenRefreshed, second.Message)

	_, err = e.login.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshInvalid, "rotated token is dead")

	ok, err := e.login.Logout(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = e.login.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshInvalid)

	_, err = e.login.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrRefreshInvalid)

	require.NoError(t, e.login.LogoutAll(ctx, idx.New()))
}
