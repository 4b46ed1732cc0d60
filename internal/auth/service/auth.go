package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// AuthConfig holds the lifetimes AuthService enforces. Zero values fall
// back to the defaults below.
type AuthConfig struct {
	OtpExpiry               time.Duration
	RefreshTokenTTL         time.Duration
	EmailVerificationExpiry time.Duration
	EmailCodeDigits         int

	// ChallengeTTL bounds how long a login may wait at the two-factor gate.
	ChallengeTTL time.Duration
}

const (
	DefaultOtpExpiry               = 5 * time.Minute
	DefaultChallengeTTL            = 5 * time.Minute
	DefaultRefreshTokenTTL         = 7 * 24 * time.Hour
	DefaultEmailVerificationExpiry = 15 * time.Minute
	DefaultEmailCodeDigits         = 6
)

func (c AuthConfig) withDefaults() AuthConfig {
	if c.OtpExpiry <= 0 {
		c.OtpExpiry = DefaultOtpExpiry
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.EmailVerificationExpiry <= 0 {
		c.EmailVerificationExpiry = DefaultEmailVerificationExpiry
	}
	if c.EmailCodeDigits <= 0 {
		c.EmailCodeDigits = DefaultEmailCodeDigits
	}
	if c.ChallengeTTL <= 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	return c
}

// AuthService owns one-time passwords, two-factor secrets, refresh tokens
// and email verification codes.
type AuthService struct {
	Store    store.Store
	Clock    Clock
	Secrets  SecretProvider
	TOTP     TotpProvider
	Notifier Notifier
	Events   *events.Bus
	Config   AuthConfig
}

func (s *AuthService) now() time.Time {
	if s.Clock == nil {
		return SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *AuthService) cfg() AuthConfig { return s.Config.withDefaults() }

func (s *AuthService) findUser(ctx context.Context, q store.Users, userID idx.ID) (*domain.User, error) {
	u, err := q.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return u, nil
}

// GenerateOtp stores a fresh OTP for the user and returns its code.
func (s *AuthService) GenerateOtp(ctx context.Context, userID idx.ID) (string, error) {
	if _, err := s.findUser(ctx, s.Store.Users(), userID); err != nil {
		return "", err
	}

	secret, err := s.Secrets.Base32Secret()
	if err != nil {
		return "", fmt.Errorf("generate otp secret: %w", err)
	}

	now := s.now()
	o := &domain.OneTimePassword{
		ID:        idx.NewAt(now),
		UserID:    userID,
		Secret:    secret,
		ExpiresAt: now.Add(s.cfg().OtpExpiry),
		CreatedAt: now,
	}
	code, err := s.TOTP.Code(secret, now)
	if err != nil {
		return "", err
	}
	if err := s.Store.OTPs().Create(ctx, o); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	slogx.FromContext(ctx).Debug("otp issued",
		slog.String("user_id", userID.String()),
		slog.Time("expires_at", o.ExpiresAt),
	)
	return code, nil
}

// SendOtp issues a fresh OTP and hands its code to the Notifier, so the
// code never travels back through the caller.
func (s *AuthService) SendOtp(ctx context.Context, userID idx.ID) error {
	u, err := s.findUser(ctx, s.Store.Users(), userID)
	if err != nil {
		return err
	}
	code, err := s.GenerateOtp(ctx, userID)
	if err != nil {
		return err
	}
	if s.Notifier == nil {
		return nil
	}
	if err := s.Notifier.SendLoginCode(ctx, u.Email.String(), code); err != nil {
		return fmt.Errorf("deliver login code: %w", err)
	}
	return nil
}

// VerifyOtp checks code against the user's most recent OTP and marks it
// used. The code is derived from the time step the OTP was issued in, so it
// stays valid until the OTP expires. An OTP that has already been used does
// not verify again.
func (s *AuthService) VerifyOtp(ctx context.Context, userID idx.ID, code string) (bool, error) {
	o, ok, err := s.matchOtp(ctx, userID, code)
	if err != nil || !ok {
		return false, err
	}

	o.MarkVerified(s.now())
	if err := s.Store.OTPs().Update(ctx, o); err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	return true, nil
}

// CheckOtp is VerifyOtp without marking the OTP used, so the same code can
// still complete the login afterwards.
func (s *AuthService) CheckOtp(ctx context.Context, userID idx.ID, code string) (bool, error) {
	_, ok, err := s.matchOtp(ctx, userID, code)
	return ok, err
}

func (s *AuthService) matchOtp(ctx context.Context, userID idx.ID, code string) (*domain.OneTimePassword, bool, error) {
	if _, err := s.findUser(ctx, s.Store.Users(), userID); err != nil {
		return nil, false, err
	}

	o, err := s.Store.OTPs().FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, false, notFound(err, "otp", userID)
	}
	if o.IsExpired(s.now()) {
		return nil, false, domain.ErrOtpExpired
	}
	if o.IsVerified() {
		return nil, false, nil
	}

	ok, err := s.TOTP.Validate(code, o.Secret, o.CreatedAt)
	if err != nil || !ok {
		return nil, false, err
	}
	return o, true, nil
}

// TwoFactorSetup is returned once, when a permanent secret is created.
type TwoFactorSetup = Provisioning

// Setup2FA binds a new permanent secret to the user and enables two-factor
// login.
func (s *AuthService) Setup2FA(ctx context.Context, userID idx.ID) (TwoFactorSetup, error) {
	u, err := s.findUser(ctx, s.Store.Users(), userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if u.TwoFactorEnabled {
		return TwoFactorSetup{}, domain.ErrTwoFactorEnabled
	}

	p, err := s.TOTP.Provision(u.Email.String())
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if err := u.EnableTwoFactor(p.Secret, s.now()); err != nil {
		return TwoFactorSetup{}, err
	}
	if err := s.Store.Users().Update(ctx, u); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("save two-factor secret: %w", err)
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return p, nil
}

// Verify2FA checks code against the user's permanent secret. A user without
// one never verifies. Each authenticator step is accepted once, so a code
// seen on the wire cannot be replayed while it is still inside the skew.
func (s *AuthService) Verify2FA(ctx context.Context, userID idx.ID, code string) (bool, error) {
	u, err := s.findUser(ctx, s.Store.Users(), userID)
	if err != nil {
		return false, err
	}
	return s.verifyTwoFactorCode(ctx, u, code)
}

func (s *AuthService) verifyTwoFactorCode(ctx context.Context, u *domain.User, code string) (bool, error) {
	if u.TwoFactorSecret == "" {
		return false, nil
	}
	step, ok, err := s.TOTP.MatchStep(code, u.TwoFactorSecret, s.now())
	if err != nil || !ok {
		return false, err
	}
	claimed, err := s.Store.Users().ClaimTwoFactorStep(ctx, u.ID, step)
	if err != nil {
		return false, fmt.Errorf("claim two-factor step: %w", err)
	}
	if !claimed {
		slogx.FromContext(ctx).Warn("two-factor code replayed",
			slog.String("user_id", u.ID.String()),
			slog.Int64("step", step),
		)
	}
	return claimed, nil
}

// Disable2FA removes the permanent secret. It takes a current authenticator
// code so a stolen access token alone cannot strip the second factor.
func (s *AuthService) Disable2FA(ctx context.Context, userID idx.ID, code string) error {
	u, err := s.findUser(ctx, s.Store.Users(), userID)
	if err != nil {
		return err
	}
	if !u.TwoFactorEnabled {
		return domain.ErrTwoFactorNotEnabled
	}
	ok, err := s.verifyTwoFactorCode(ctx, u, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrOtpInvalid
	}

	if err := u.DisableTwoFactor(s.now()); err != nil {
		return err
	}
	if err := s.Store.Users().Update(ctx, u); err != nil {
		return fmt.Errorf("clear two-factor secret: %w", err)
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return nil
}

// OpenTwoFactorChallenge starts the wait at the two-factor gate. A user has
// at most one open challenge; opening another discards the previous one.
func (s *AuthService) OpenTwoFactorChallenge(ctx context.Context, userID idx.ID) (*domain.TwoFactorChallenge, error) {
	plain, err := s.Secrets.OpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate challenge token: %w", err)
	}

	now := s.now()
	c := &domain.TwoFactorChallenge{
		ID:        idx.NewAt(now),
		UserID:    userID,
		Token:     plain,
		TokenHash: cryptox.FingerprintToken(plain),
		ExpiresAt: now.Add(s.cfg().ChallengeTTL),
		CreatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.TwoFactorChallenges().DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		return tx.TwoFactorChallenges().Create(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("store two-factor challenge: %w", err)
	}
	return c, nil
}

// CreateRefreshToken replaces every refresh token the user holds with a new
// one. The returned token carries the plaintext in Token; only its
// fingerprint is stored.
func (s *AuthService) CreateRefreshToken(ctx context.Context, userID idx.ID) (*domain.RefreshToken, error) {
	plain, err := s.Secrets.OpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now()
	t := &domain.RefreshToken{
		ID:        idx.NewAt(now),
		UserID:    userID,
		Token:     plain,
		TokenHash: cryptox.FingerprintToken(plain),
		ExpiresAt: now.Add(s.cfg().RefreshTokenTTL),
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := s.findUser(ctx, tx.Users(), userID); err != nil {
			return err
		}
		if err := tx.RefreshTokens().DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete previous refresh tokens: %w", err)
		}
		if err := tx.RefreshTokens().Create(ctx, t); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ValidateRefreshToken returns the stored token, or nil when it is unknown,
// expired or revoked.
func (s *AuthService) ValidateRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	t, err := s.Store.RefreshTokens().FindByToken(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !t.IsUsable(s.now()) {
		return nil, nil
	}
	return t, nil
}

// RevokeRefreshToken reports false when the token is unknown. Revoking an
// already revoked token succeeds.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	t, err := s.Store.RefreshTokens().FindByToken(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.Revoke(s.now())
	if err := s.Store.RefreshTokens().Update(ctx, t); err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return true, nil
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID idx.ID) error {
	if err := s.Store.RefreshTokens().DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// SendEmailVerification issues a numeric code for email and hands it to the
// notifier. Earlier unverified codes for the address are discarded.
func (s *AuthService) SendEmailVerification(ctx context.Context, rawEmail string) error {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return err
	}

	cfg := s.cfg()
	code, err := s.Secrets.NumericCode(cfg.EmailCodeDigits)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	now := s.now()
	v := &domain.EmailVerification{
		ID:        idx.NewAt(now),
		Email:     email.String(),
		Code:      code,
		ExpiresAt: now.Add(cfg.EmailVerificationExpiry),
		CreatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.EmailVerifications().DeleteByEmail(ctx, v.Email); err != nil {
			return err
		}
		return tx.EmailVerifications().Create(ctx, v)
	})
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if s.Notifier != nil {
		if err := s.Notifier.SendEmailVerificationCode(ctx, v.Email, code); err != nil {
			return fmt.Errorf("send verification code: %w", err)
		}
	}
	return nil
}

// VerifyEmailCode fails with ErrOtpInvalid for an unknown code and
// ErrOtpExpired once the code has expired.
func (s *AuthService) VerifyEmailCode(ctx context.Context, rawEmail, code string) error {
	email, err := domain.NewEmail(rawEmail)
	if err != nil {
		return err
	}

	v, err := s.Store.EmailVerifications().FindByCode(ctx, email.String(), code)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrOtpInvalid
	}
	if err != nil {
		return err
	}
	if v.IsVerified() {
		return nil
	}
	now := s.now()
	if v.IsExpired(now) {
		return domain.ErrOtpExpired
	}

	v.MarkVerified(now)
	if err := s.Store.EmailVerifications().Update(ctx, v); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *AuthService) IsEmailVerified(ctx context.Context, email string) (bool, error) {
	return s.Store.EmailVerifications().IsVerified(ctx, email)
}

// UpdateLastLogin stamps the user's last login and returns the updated user.
// Only the timestamp columns are written, so a login racing a role change
// cannot roll that change back.
func (s *AuthService) UpdateLastLogin(ctx context.Context, userID idx.ID) (*domain.User, error) {
	u, err := s.findUser(ctx, s.Store.Users(), userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := u.UpdateLastLogin(now); err != nil {
		return nil, err
	}
	if err := s.Store.Users().TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("save last login: %w", notFound(err, "user", u.ID))
	}
	s.Events.DispatchEventsFromAggregate(ctx, u)
	return u, nil
}
