package service

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultTOTPPeriod = 30
	DefaultTOTPDigits = 6

	qrCodeSize = 256
)

// TotpProvider derives and checks time-based codes.
type TotpProvider interface {
	// Code derives the code for secret in the time step containing at.
	Code(secret string, at time.Time) (string, error)
	// Validate reports whether code matches secret around at. A code of the
	// wrong length is invalid, not an error.
	Validate(code, secret string, at time.Time) (bool, error)
	// MatchStep is Validate that also reports which time step matched, so
	// callers can refuse a step they have already accepted.
	MatchStep(code, secret string, at time.Time) (step int64, ok bool, err error)
	// Provision creates a new permanent two-factor secret for account.
	Provision(account string) (Provisioning, error)
}

// Provisioning is what an authenticator app needs to enroll.
type Provisioning struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_code"` // data:image/png;base64,...
}

// PquernaTOTP is the RFC 6238 TotpProvider. Period and Digits are honored
// exactly; Skew is the number of neighbouring steps also accepted.
type PquernaTOTP struct {
	Issuer string
	Period uint
	Digits int
	Skew   uint
}

func (p *PquernaTOTP) opts() totp.ValidateOpts {
	period, digits := p.Period, p.Digits
	if period == 0 {
		period = DefaultTOTPPeriod
	}
	if digits == 0 {
		digits = DefaultTOTPDigits
	}
	return totp.ValidateOpts{
		Period:    period,
		Skew:      p.Skew,
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (p *PquernaTOTP) Code(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, p.opts())
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}

func (p *PquernaTOTP) Validate(code, secret string, at time.Time) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, at, p.opts())
	if errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validate totp code: %w", err)
	}
	return ok, nil
}

func (p *PquernaTOTP) MatchStep(code, secret string, at time.Time) (int64, bool, error) {
	o := p.opts()
	if len(code) != o.Digits.Length() {
		return 0, false, nil
	}
	period := int64(o.Period)
	counter := at.Unix() / period
	skew := int64(o.Skew)
	for step := counter - skew; step <= counter+skew; step++ {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), o)
		if err != nil {
			return 0, false, fmt.Errorf("generate totp code: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true, nil
		}
	}
	return 0, false, nil
}

func (p *PquernaTOTP) Provision(account string) (Provisioning, error) {
	o := p.opts()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: account,
		Period:      o.Period,
		SecretSize:  20,
		Digits:      o.Digits,
		Algorithm:   o.Algorithm,
	})
	if err != nil {
		return Provisioning{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return Provisioning{}, fmt.Errorf("render totp qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Provisioning{}, fmt.Errorf("encode totp qr code: %w", err)
	}

	return Provisioning{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
