package jwtx_test

import (
	"encoding/base64"
	"testing"

	"github.com/aussiebroadwan/parish/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestPublicJWKS(t *testing.T) {
	v := jwtx.NewVerifier(jwtx.VerifyOptions{})
	require.False(t, v.Ready())
	require.Empty(t, v.PublicJWKS().Keys)

	b := newSigner(t, "b")
	a := newSigner(t, "a")
	v.AddSigner(b)
	v.AddSigner(a)
	require.True(t, v.Ready())

	set := v.PublicJWKS()
	require.Len(t, set.Keys, 2)
	require.Equal(t, "a", set.Keys[0].Kid)
	require.Equal(t, "b", set.Keys[1].Kid)

	k := set.Keys[0]
	require.Equal(t, "OKP", k.Kty)
	require.Equal(t, "Ed25519", k.Crv)
	require.Equal(t, "EdDSA", k.Alg)
	require.Equal(t, "sig", k.Use)

	x, err := base64.RawURLEncoding.DecodeString(k.X)
	require.NoError(t, err)
	require.Equal(t, []byte(a.Public()), x)
}

func TestAddJWKSRoundTrip(t *testing.T) {
	signer := newSigner(t, "k1")
	src := jwtx.NewVerifier(jwtx.VerifyOptions{})
	src.AddSigner(signer)

	set := src.PublicJWKS()
	set.Keys = append(set.Keys, jwtx.JWK{Kty: "RSA", Kid: "rsa-1"})

	dst := jwtx.NewVerifier(jwtx.VerifyOptions{})
	n, err := dst.AddJWKS(set)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, src.PublicJWKS(), dst.PublicJWKS())
}

func TestAddJWKSRejectsBadKey(t *testing.T) {
	v := jwtx.NewVerifier(jwtx.VerifyOptions{})
	_, err := v.AddJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "OKP", Crv: "Ed25519", Kid: "x", X: "AAAA"}}})
	require.ErrorIs(t, err, jwtx.ErrMalformed)
	require.False(t, v.Ready())
}
