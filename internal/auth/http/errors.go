package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/pkg/authsdk"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/idx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// responder is embedded by every handler that renders localized messages
// and domain errors.
type responder struct {
	Translator service.Translator
}

func (h responder) t(ctx context.Context, key string, args ...any) string {
	if h.Translator == nil {
		return key
	}
	return h.Translator.T(ctx, key, args...)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		if errors.Is(err, domain.ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case domain.KindExpired:
		return http.StatusGone
	case domain.KindAlreadyExists:
		return http.StatusConflict
	case domain.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidValue:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse. Anything that is not a domain error
// is logged and hidden behind a generic server error.
func (h responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var de *domain.Error
	if !errors.As(err, &de) {
		slogx.FromContext(ctx).Error("request failed", "err", err)
		authsdk.ErrServerError.WithDescription(h.t(ctx, "error.internal")).WriteError(w)
		return
	}

	code := de.Code
	if code == "" {
		code = string(de.Kind)
	}

	// Credential failures never say which part was wrong.
	if errors.Is(err, domain.ErrInvalidCredentials) {
		de = domain.ErrInvalidCredentials
	}

	var desc string
	switch code {
	case "entity_not_found", "already_exists", "invalid_value_object":
		desc = h.t(ctx, "error."+code, de.Field)
	default:
		desc = h.t(ctx, "error."+code)
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slogx.FromContext(ctx).Error("request failed", "err", err)
	} else {
		slogx.FromContext(ctx).Debug("request rejected", "code", code, "err", err)
	}

	apiErr := &authsdk.APIError{StatusCode: status, Code: code, Description: desc}
	if de.Kind != domain.KindUnauthorized {
		apiErr.Field = de.Field
	}
	apiErr.WriteError(w)
}

// invalid writes a 400 for bodies that could not be decoded.
func (h responder) invalid(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Debug("bad request body", "err", err)
	authsdk.ErrInvalidRequest.WithDescription(h.t(r.Context(), "error.bad_request")).WriteError(w)
}

// userID returns the authenticated subject placed by httpx.AuthnMiddleware.
func (h responder) userID(w http.ResponseWriter, r *http.Request) (idx.ID, bool) {
	id, err := idx.Parse(httpx.UserIDFromContext(r.Context()))
	if err != nil {
		authsdk.ErrInvalidToken.WithDescription(h.t(r.Context(), "error.unauthenticated")).WriteError(w)
		return idx.Zero, false
	}
	return id, true
}

// parseID parses a client-supplied id. A malformed id is reported as
// invalid input rather than not found.
func parseID(raw, field string) (idx.ID, error) {
	id, err := idx.Parse(raw)
	if err != nil {
		return idx.Zero, domain.InvalidValue(field, "malformed id")
	}
	return id, nil
}
