package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// Message keys handed to the Translator.
const (
	MsgLoginSuccess              = "login.success"
	MsgEmailVerificationRequired = "login.email_verification_required"
	MsgOtpRequired               = "login.otp_required"
	MsgTokenRefreshed            = "login.token_refreshed"
)

// LoginResult is one of EmailVerificationRequired, OtpRequired or
// LoginSuccess. Callers switch on the concrete type.
type LoginResult interface {
	loginResult()
}

type EmailVerificationRequired struct {
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
	UserID                    idx.ID `json:"userId"`
	Email                     string `json:"email"`
	Message                   string `json:"message"`
}

// OtpRequired carries the challenge token that the second step must present.
// The user id alone never completes a login.
type OtpRequired struct {
	RequiresOtp    bool   `json:"requiresOtp"`
	UserID         idx.ID `json:"userId"`
	ChallengeToken string `json:"challengeToken"`
	ExpiresIn      int64  `json:"expiresIn"`
	Message        string `json:"message"`
}

type LoginSuccess struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"`
	User         domain.UserProfile `json:"user"`
	Message      string             `json:"message"`
}

func (*EmailVerificationRequired) loginResult() {}
func (*OtpRequired) loginResult()               {}
func (*LoginSuccess) loginResult()              {}

// LoginService runs the login state machine:
//
//	credential check -> last login -> email gate -> two-factor gate ->
//	permission aggregation -> token issuance
//
// The first two steps always run, so every accepted password updates the
// last login even when a gate stops the session.
type LoginService struct {
	Users      *UserService
	Auth       *AuthService
	Store      store.Store
	Tokens     TokenIssuer
	Translator Translator
}

func (s *LoginService) t(ctx context.Context, key string) string {
	if s.Translator == nil {
		return keyTranslator{}.T(ctx, key)
	}
	return s.Translator.T(ctx, key)
}

func (s *LoginService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	l = l.With(slog.String("user_id", u.ID.String()))
	l.Debug("login: credentials accepted")

	if u, err = s.Auth.UpdateLastLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	l.Debug("login: last login recorded")

	verified, err := s.Auth.IsEmailVerified(ctx, u.Email.String())
	if err != nil {
		return nil, err
	}
	if !verified {
		l.Debug("login: awaiting email verification")
		return &EmailVerificationRequired{
			RequiresEmailVerification: true,
			UserID:                    u.ID,
			Email:                     u.Email.String(),
			Message:                   s.t(ctx, MsgEmailVerificationRequired),
		}, nil
	}

	if u.TwoFactorEnabled {
		c, err := s.Auth.OpenTwoFactorChallenge(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		l.Debug("login: awaiting otp", slog.Time("challenge_expires_at", c.ExpiresAt))
		return &OtpRequired{
			RequiresOtp:    true,
			UserID:         u.ID,
			ChallengeToken: c.Token,
			ExpiresIn:      int64(c.ExpiresAt.Sub(c.CreatedAt).Seconds()),
			Message:        s.t(ctx, MsgOtpRequired),
		}, nil
	}

	res, err := s.issue(ctx, u, true, MsgLoginSuccess)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CompleteTwoFactor finishes a login stopped at the two-factor gate. The
// challenge token proves the password and email gates were passed. The code
// is checked against the permanent secret first, then against the user's
// live OTP. Every wrong code counts against the challenge, which is
// discarded after MaxTwoFactorAttempts failures.
func (s *LoginService) CompleteTwoFactor(ctx context.Context, challengeToken, code string) (*LoginSuccess, error) {
	c, u, err := s.openChallenge(ctx, challengeToken)
	if err != nil {
		return nil, err
	}

	ok, err := s.Auth.verifyTwoFactorCode(ctx, u, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		ok, err = s.Auth.VerifyOtp(ctx, u.ID, code)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOtpExpired) {
			ok, err = false, nil
		}
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, s.rejectCode(ctx, c)
	}

	// Only one completion may spend the challenge.
	err = s.Store.TwoFactorChallenges().Delete(ctx, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrChallengeInvalid
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, true, MsgLoginSuccess)
}

// SendChallengeOtp delivers an OTP to the owner of an open challenge, for
// users who cannot reach their authenticator.
func (s *LoginService) SendChallengeOtp(ctx context.Context, challengeToken string) error {
	_, u, err := s.openChallenge(ctx, challengeToken)
	if err != nil {
		return err
	}
	return s.Auth.SendOtp(ctx, u.ID)
}

// CheckChallengeOtp tells the client whether an emailed OTP is right before
// it submits the login. The OTP is not spent; a wrong code still counts
// against the challenge.
func (s *LoginService) CheckChallengeOtp(ctx context.Context, challengeToken, code string) error {
	c, u, err := s.openChallenge(ctx, challengeToken)
	if err != nil {
		return err
	}
	ok, err := s.Auth.CheckOtp(ctx, u.ID, code)
	if err != nil {
		return err
	}
	if !ok {
		return s.rejectCode(ctx, c)
	}
	return nil
}

// openChallenge loads a live challenge and its user, re-checking every gate
// the login passed when the challenge was opened.
func (s *LoginService) openChallenge(ctx context.Context, token string) (*domain.TwoFactorChallenge, *domain.User, error) {
	if token == "" {
		return nil, nil, domain.ErrChallengeInvalid
	}
	challenges := s.Store.TwoFactorChallenges()
	c, err := challenges.FindByToken(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, domain.ErrChallengeInvalid
	}
	if err != nil {
		return nil, nil, err
	}

	discard := func(reason error) error {
		if err := challenges.Delete(ctx, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return reason
	}
	if c.IsExpired(s.Auth.now()) {
		return nil, nil, discard(domain.ErrChallengeExpired)
	}
	if c.IsExhausted() {
		return nil, nil, discard(domain.ErrTooManyAttempts)
	}

	u, err := s.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, discard(domain.ErrChallengeInvalid)
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.Active {
		return nil, nil, discard(domain.ErrUserInactive)
	}
	if !u.TwoFactorEnabled {
		return nil, nil, discard(domain.ErrTwoFactorNotEnabled)
	}
	verified, err := s.Auth.IsEmailVerified(ctx, u.Email.String())
	if err != nil {
		return nil, nil, err
	}
	if !verified {
		return nil, nil, discard(domain.ErrEmailNotVerified)
	}
	return c, u, nil
}

// rejectCode counts a wrong code against the challenge and discards it at
// the cap.
func (s *LoginService) rejectCode(ctx context.Context, c *domain.TwoFactorChallenge) error {
	l := slogx.FromContext(ctx).With(slog.String("user_id", c.UserID.String()))
	attempts, err := s.Store.TwoFactorChallenges().IncrementAttempts(ctx, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrChallengeInvalid
	}
	if err != nil {
		return err
	}
	l.Warn("two-factor code rejected", slog.Int("attempts", attempts))

	if attempts < domain.MaxTwoFactorAttempts {
		return domain.ErrOtpInvalid
	}
	if err := s.Store.TwoFactorChallenges().Delete(ctx, c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	l.Warn("two-factor challenge discarded", slog.String("reason", "too_many_attempts"))
	return domain.ErrTooManyAttempts
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// superseded when the new one is stored.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*LoginSuccess, error) {
	rt, err := s.Auth.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, domain.ErrRefreshInvalid
	}

	u, err := s.Users.GetByID(ctx, rt.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, domain.ErrRefreshInvalid
	}

	verified, err := s.Auth.IsEmailVerified(ctx, u.Email.String())
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, verified, MsgTokenRefreshed)
}

// Logout revokes one refresh token. It reports false for an unknown token.
func (s *LoginService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	return s.Auth.RevokeRefreshToken(ctx, refreshToken)
}

// LogoutAll ends every session the user holds.
func (s *LoginService) LogoutAll(ctx context.Context, userID idx.ID) error {
	return s.Auth.RevokeAllUserTokens(ctx, userID)
}

// aggregatePermissions re-reads each assigned role so permission changes
// made since the user was loaded apply to this token.
func (s *LoginService) aggregatePermissions(ctx context.Context, u *domain.User) ([]string, error) {
	roles := make([]*domain.Role, 0, len(u.Roles))
	for _, assigned := range u.Roles {
		r, err := s.Store.Roles().FindByID(ctx, assigned.ID)
		if err != nil {
			return nil, notFound(err, "role", assigned.ID)
		}
		roles = append(roles, r)
	}
	return domain.UnionPermissionNames(roles), nil
}

func (s *LoginService) issue(ctx context.Context, u *domain.User, emailVerified bool, msgKey string) (*LoginSuccess, error) {
	perms, err := s.aggregatePermissions(ctx, u)
	if err != nil {
		return nil, err
	}
	pair, err := s.Tokens.Issue(ctx, u, perms, emailVerified)
	if err != nil {
		return nil, err
	}
	slogx.FromContext(ctx).Debug("login: tokens issued",
		slog.String("user_id", u.ID.String()),
		slog.Int("permissions", len(perms)),
	)
	return &LoginSuccess{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		User:         u.Profile(),
		Message:      s.t(ctx, msgKey),
	}, nil
}
