package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
)

const readyTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	Started  time.Time
	Version  string
	Store    store.Store
	Verifier *jwtx.Verifier
}

func (h *HealthHandler) base(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
	}
}

// Live answers 200 for as long as the process can serve at all.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.base("ok"))
}

// Ready answers 503 until the database responds and a verification key is
// loaded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := &authsdk.HealthChecks{
		Database: checkStatus(h.Store.Ping(ctx)),
		Signer:   "ok",
	}
	if !h.Verifier.Ready() {
		checks.Signer = "error: no keys loaded"
	}

	resp := h.base("ok")
	resp.Checks = checks
	code := http.StatusOK
	if checks.Database != "ok" || checks.Signer != "ok" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, resp)
}

func checkStatus(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
