package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("verify: %w", domain.ErrOtpExpired)

	require.ErrorIs(t, err, domain.ErrOtpExpired)
	require.ErrorIs(t, err, domain.ErrExpired, "kind sentinel matches any code")
	require.False(t, errors.Is(err, domain.ErrOtpInvalid))
	require.False(t, errors.Is(err, domain.ErrNotFound))
	require.Equal(t, domain.KindExpired, domain.KindOf(err))
	require.Equal(t, "otp_expired", domain.CodeOf(err))
}

func TestNotFoundAndWrap(t *testing.T) {
	cause := errors.New("sql: no rows")
	err := domain.NotFound("user", "01ABC")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Contains(t, err.Error(), "user 01ABC not found")

	wrapped := domain.Wrap(domain.ErrInvalidCredentials, cause)
	require.ErrorIs(t, wrapped, domain.ErrInvalidCredentials)
	require.ErrorIs(t, wrapped, cause)
	require.Nil(t, domain.ErrInvalidCredentials.Cause, "sentinel must not be mutated")
}
