package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// Clock supplies the current time. Tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC at millisecond precision, the
// precision timestamps are stored at.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SecretProvider generates the random material handed to users.
type SecretProvider interface {
	// Base32Secret returns a TOTP shared secret.
	Base32Secret() (string, error)
	// NumericCode returns a code of exactly digits decimal characters.
	NumericCode(digits int) (string, error)
	// OpaqueToken returns a URL-safe bearer token.
	OpaqueToken() (string, error)
}

// CryptoSecrets is the crypto/rand backed SecretProvider.
type CryptoSecrets struct{}

func (CryptoSecrets) Base32Secret() (string, error)          { return cryptox.GenerateBase32Secret(20) }
func (CryptoSecrets) NumericCode(digits int) (string, error) { return cryptox.GenerateNumericCode(digits) }
func (CryptoSecrets) OpaqueToken() (string, error)           { return cryptox.GenerateToken(cryptox.TokenSize256) }

// CredentialHasher hashes and compares passwords. Compare returns nil only on
// a match. *cryptox.Hasher satisfies it.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Compare(encodedHash, password string) error
}

// rehasher is implemented by hashers that can tell when a stored hash uses
// an outdated scheme.
type rehasher interface {
	NeedsRehash(encodedHash string) bool
}

// Notifier delivers out-of-band codes (login OTP, email verification,
// password reset) to the user.
type Notifier interface {
	SendLoginCode(ctx context.Context, email, code string) error
	SendEmailVerificationCode(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier writes codes to the request logger instead of delivering them.
// It is meant for development environments without a mail relay.
type LogNotifier struct{}

func (LogNotifier) SendLoginCode(ctx context.Context, email, code string) error {
	slogx.FromContext(ctx).Info("login code issued",
		slog.String("email", email), slog.String("code", code))
	return nil
}

func (LogNotifier) SendEmailVerificationCode(ctx context.Context, email, code string) error {
	slogx.FromContext(ctx).Info("email verification code issued",
		slog.String("email", email), slog.String("code", code))
	return nil
}

func (LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	slogx.FromContext(ctx).Info("password reset token issued",
		slog.String("email", email), slog.String("token", token))
	return nil
}

// Translator looks up user-visible messages. The service layer treats the
// result as opaque.
type Translator interface {
	T(ctx context.Context, key string, args ...any) string
}

type keyTranslator struct{}

func (keyTranslator) T(_ context.Context, key string, _ ...any) string { return key }
