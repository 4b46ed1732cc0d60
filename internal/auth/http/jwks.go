package http

import (
	"net/http"

	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
)

// JWKSHandler exposes the access-token verification keys.
func JWKSHandler(verifier *jwtx.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(verifier.PublicJWKS()))
	}
}
