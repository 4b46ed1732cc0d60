package cryptox

import (
	"encoding/base32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"128-bit token", TokenSize128},
		{"256-bit token", TokenSize256},
		{"custom size", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestGenerateBase32Secret(t *testing.T) {
	secret, err := GenerateBase32Secret(20)
	require.NoError(t, err)
	require.Len(t, secret, 32, "20 bytes encode to 32 base32 chars")

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	require.NoError(t, err)
	require.Len(t, decoded, 20)

	_, err = GenerateBase32Secret(0)
	require.Error(t, err)
}

func TestGenerateNumericCode(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		code, err := GenerateNumericCode(digits)
		require.NoError(t, err)
		require.Len(t, code, digits)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "unexpected rune %q", r)
		}
	}

	_, err := GenerateNumericCode(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	fp1a := FingerprintToken("test-token-1")
	fp1b := FingerprintToken("test-token-1")
	fp2 := FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}
