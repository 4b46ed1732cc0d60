package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

// JWK is an OKP public key as published in a JWKS document (RFC 8037).
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWKS returns every registered verification key, sorted by kid.
func (v *Verifier) PublicJWKS() JWKS {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := JWKS{Keys: make([]JWK, 0, len(v.keys))}
	for kid, pub := range v.keys {
		out.Keys = append(out.Keys, JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
			Kid: kid,
			Alg: jwt.SigningMethodEdDSA.Alg(),
			Use: "sig",
		})
	}
	sort.Slice(out.Keys, func(i, j int) bool { return out.Keys[i].Kid < out.Keys[j].Kid })
	return out
}

// Ready reports whether at least one verification key is loaded.
func (v *Verifier) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys) > 0
}

// AddJWKS registers every Ed25519 signing key in set. Keys of other types
// are skipped; a malformed Ed25519 key fails the whole call before anything
// is registered.
func (v *Verifier) AddJWKS(set JWKS) (int, error) {
	keys := make(map[string]ed25519.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "OKP" || k.Crv != "Ed25519" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		if k.Kid == "" {
			return 0, fmt.Errorf("%w: jwk without kid", ErrMalformed)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil || len(x) != ed25519.PublicKeySize {
			return 0, fmt.Errorf("%w: jwk %s has a bad x", ErrMalformed, k.Kid)
		}
		keys[k.Kid] = ed25519.PublicKey(x)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for kid, pub := range keys {
		v.keys[kid] = pub
	}
	return len(keys), nil
}
