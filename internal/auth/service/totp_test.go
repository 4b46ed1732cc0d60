package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B secret, base32 of "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestPquernaTOTPCode(t *testing.T) {
	t.Parallel()

	p8 := &PquernaTOTP{Period: 30, Digits: 8}
	code, err := p8.Code(rfcSecret, time.Unix(59, 0).UTC())
	require.NoError(t, err)
	require.Equal(t, "94287082", code)

	p6 := &PquernaTOTP{}
	code, err = p6.Code(rfcSecret, time.Unix(59, 0).UTC())
	require.NoError(t, err)
	require.Equal(t, "287082", code, "defaults to 30s steps and 6 digits")
}

func TestPquernaTOTPValidate(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 9, 0, 10, 0, time.UTC)

	t.Run("exact step only", func(t *testing.T) {
		p := &PquernaTOTP{Period: 30, Digits: 6}
		code, err := p.Code(rfcSecret, at)
		require.NoError(t, err)

		ok, err := p.Validate(code, rfcSecret, at.Add(19*time.Second))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = p.Validate(code, rfcSecret, at.Add(20*time.Second))
		require.NoError(t, err)
		require.False(t, ok, "next step")
	})

	t.Run("skew accepts neighbours", func(t *testing.T) {
		p := &PquernaTOTP{Period: 30, Digits: 6, Skew: 1}
		code, err := p.Code(rfcSecret, at)
		require.NoError(t, err)

		ok, err := p.Validate(code, rfcSecret, at.Add(30*time.Second))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("custom period", func(t *testing.T) {
		p := &PquernaTOTP{Period: 60, Digits: 6}
		code, err := p.Code(rfcSecret, at)
		require.NoError(t, err)

		ok, err := p.Validate(code, rfcSecret, at.Add(45*time.Second))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("wrong length", func(t *testing.T) {
		p := &PquernaTOTP{Digits: 6}
		ok, err := p.Validate("1234", rfcSecret, at)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestPquernaTOTPMatchStep(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 9, 0, 10, 0, time.UTC)
	p := &PquernaTOTP{Period: 30, Digits: 6, Skew: 1}
	counter := at.Unix() / 30

	code, err := p.Code(rfcSecret, at)
	require.NoError(t, err)

	step, ok, err := p.MatchStep(code, rfcSecret, at)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, counter, step)

	step, ok, err = p.MatchStep(code, rfcSecret, at.Add(30*time.Second))
	require.NoError(t, err)
	require.True(t, ok, "previous step within skew")
	require.Equal(t, counter, step, "reports the step the code belongs to")

	_, ok, err = p.MatchStep(code, rfcSecret, at.Add(60*time.Second))
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = p.MatchStep("12", rfcSecret, at)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPquernaTOTPProvision(t *testing.T) {
	t.Parallel()
	p := &PquernaTOTP{Issuer: "Parish", Period: 30, Digits: 6}

	prov, err := p.Provision("ada@example.com")
	require.NoError(t, err)
	require.Len(t, prov.Secret, 32)
	require.Contains(t, prov.URL, "issuer=Parish")
	require.Contains(t, prov.URL, "ada@example.com")
	require.Contains(t, prov.QRCode, "data:image/png;base64,")

	code, err := p.Code(prov.Secret, time.Now())
	require.NoError(t, err)
	ok, err := p.Validate(code, prov.Secret, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
}
