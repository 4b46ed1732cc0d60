package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Issuer         string `env:"AUTH_ISSUER"           envDefault:"parish-auth"`
	DatabaseFile   string `env:"AUTH_DATABASE_FILE"    envDefault:"auth.db"`
	PepperFile     string `env:"AUTH_PEPPER_FILE"      envDefault:"pepper"`
	SigningKeyFile string `env:"AUTH_SIGNING_KEY_FILE" envDefault:"signing.key"`

	// BootstrapToken guards POST /v1/bootstrap. Empty disables the endpoint.
	BootstrapToken string `env:"AUTH_BOOTSTRAP_TOKEN"`

	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	AccessTokenTTL               time.Duration `env:"AUTH_ACCESS_TOKEN_TTL"                 envDefault:"15m"`
	OtpExpiresInMinutes          int           `env:"OTP_EXPIRES_IN_MINUTES"                envDefault:"5"`
	OtpStepSeconds               int           `env:"OTP_STEP_SECONDS"                      envDefault:"30"`
	OtpDigits                    int           `env:"OTP_DIGITS"                            envDefault:"6"`
	RefreshTokenExpiresIn        Days          `env:"REFRESH_TOKEN_EXPIRES_IN"              envDefault:"7d"`
	EmailVerificationExpiresMins int           `env:"EMAIL_VERIFICATION_EXPIRES_IN_MINUTES" envDefault:"15"`
	PasswordResetExpiresIn       time.Duration `env:"PASSWORD_RESET_EXPIRES_IN"             envDefault:"1h"`
	TwoFactorChallengeTTL        time.Duration `env:"TWO_FACTOR_CHALLENGE_TTL"              envDefault:"5m"`

	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en-US"`

	// Requests per minute for each rate-limit profile.
	RateLimitStrict   int `env:"RATE_LIMIT_STRICT_PER_MINUTE"   envDefault:"5"`
	RateLimitModerate int `env:"RATE_LIMIT_MODERATE_PER_MINUTE" envDefault:"20"`
	RateLimitPublic   int `env:"RATE_LIMIT_PUBLIC_PER_MINUTE"   envDefault:"1000"`
}

const minBootstrapTokenLen = 16

// Days is a lifetime counted in whole days. It parses "7d" as well as any
// time.Duration string; the latter is rounded to the nearest day.
type Days int

func (d *Days) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, ok := strings.CutSuffix(s, "d"); ok {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid day count %q", s)
		}
		*d = Days(v)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid lifetime %q: %w", s, err)
	}
	*d = Days(dur.Round(24*time.Hour) / (24 * time.Hour))
	return nil
}

func (d Days) Duration() time.Duration { return time.Duration(d) * 24 * time.Hour }

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.OtpExpiresInMinutes <= 0 {
		errs = append(errs, errors.New("OTP_EXPIRES_IN_MINUTES must be positive"))
	}
	if c.OtpStepSeconds <= 0 {
		errs = append(errs, errors.New("OTP_STEP_SECONDS must be positive"))
	}
	if c.OtpDigits != 6 && c.OtpDigits != 8 {
		errs = append(errs, fmt.Errorf("OTP_DIGITS must be 6 or 8, got %d", c.OtpDigits))
	}
	if c.RefreshTokenExpiresIn <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRES_IN must be at least one day"))
	}
	if c.EmailVerificationExpiresMins <= 0 {
		errs = append(errs, errors.New("EMAIL_VERIFICATION_EXPIRES_IN_MINUTES must be positive"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL must be positive"))
	}
	if c.PasswordResetExpiresIn <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_EXPIRES_IN must be positive"))
	}
	if c.TwoFactorChallengeTTL <= 0 {
		errs = append(errs, errors.New("TWO_FACTOR_CHALLENGE_TTL must be positive"))
	}
	if c.BootstrapToken != "" && len(c.BootstrapToken) < minBootstrapTokenLen {
		errs = append(errs, fmt.Errorf("AUTH_BOOTSTRAP_TOKEN must be at least %d characters", minBootstrapTokenLen))
	}
	if c.RateLimitStrict <= 0 || c.RateLimitModerate <= 0 || c.RateLimitPublic <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_*_PER_MINUTE must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	return errors.Join(errs...)
}
