package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can react without string matching.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindExpired       ErrorKind = "expired"
	KindAlreadyExists ErrorKind = "already_exists"
	KindBusinessRule  ErrorKind = "business_rule"
	KindInvalidValue  ErrorKind = "invalid_value"
)

// Error is the single error type raised by the auth core.
//
// errors.Is(err, target) matches when kinds are equal and, if target carries
// a Code, the codes are equal too. So errors.Is(err, ErrNotFound) matches any
// missing entity while errors.Is(err, ErrOtpExpired) only matches that case.
type Error struct {
	Kind    ErrorKind
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Kind sentinels, match any error of that kind.
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrExpired       = &Error{Kind: KindExpired}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrBusinessRule  = &Error{Kind: KindBusinessRule}
	ErrInvalidValue  = &Error{Kind: KindInvalidValue}
)

// Specific failures.
var (
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Code: "invalid_credentials", Message: "invalid email or password"}
	ErrForbidden          = &Error{Kind: KindUnauthorized, Code: "forbidden", Message: "operation not permitted"}
	ErrOtpInvalid         = &Error{Kind: KindUnauthorized, Code: "otp_invalid", Message: "invalid verification code"}
	ErrOtpExpired         = &Error{Kind: KindExpired, Code: "otp_expired", Message: "verification code expired"}
	ErrRefreshInvalid     = &Error{Kind: KindUnauthorized, Code: "refresh_token_invalid", Message: "invalid or expired refresh token"}
	ErrResetInvalid       = &Error{Kind: KindUnauthorized, Code: "reset_token_invalid", Message: "invalid password reset token"}
	ErrResetExpired       = &Error{Kind: KindExpired, Code: "reset_token_expired", Message: "password reset token expired"}
	ErrChallengeInvalid   = &Error{Kind: KindUnauthorized, Code: "challenge_invalid", Message: "invalid or finished login challenge"}
	ErrChallengeExpired   = &Error{Kind: KindExpired, Code: "challenge_expired", Message: "login challenge expired"}
	ErrTooManyAttempts    = &Error{Kind: KindUnauthorized, Code: "too_many_attempts", Message: "too many failed attempts"}
	ErrEmailNotVerified   = &Error{Kind: KindUnauthorized, Code: "email_not_verified", Message: "email address not verified"}
	ErrBootstrapToken     = &Error{Kind: KindUnauthorized, Code: "bootstrap_token_invalid", Message: "invalid bootstrap token"}

	ErrUserInactive            = &Error{Kind: KindBusinessRule, Code: "user_inactive", Message: "user is inactive"}
	ErrLastRole                = &Error{Kind: KindBusinessRule, Code: "last_role", Message: "cannot remove the last role of a user"}
	ErrTwoFactorEnabled        = &Error{Kind: KindBusinessRule, Code: "two_factor_enabled", Message: "two-factor authentication already enabled"}
	ErrTwoFactorNotEnabled     = &Error{Kind: KindBusinessRule, Code: "two_factor_not_enabled", Message: "two-factor authentication not enabled"}
	ErrRoleNotEligible         = &Error{Kind: KindBusinessRule, Code: "role_not_eligible", Message: "user is not eligible for role"}
	ErrDefaultRoleNotDeletable = &Error{Kind: KindBusinessRule, Code: "default_role", Message: "default role cannot be deleted"}
	ErrPermissionConflict      = &Error{Kind: KindBusinessRule, Code: "permission_conflict", Message: "permission conflicts with an existing permission"}
	ErrRoleInUse               = &Error{Kind: KindBusinessRule, Code: "role_in_use", Message: "role is still assigned to users"}
	ErrAlreadyBootstrapped     = &Error{Kind: KindBusinessRule, Code: "already_bootstrapped", Message: "system already bootstrapped"}
)

// NotFound reports a missing entity.
func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "entity_not_found",
		Field:   entity,
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(field string, value any) *Error {
	return &Error{
		Kind:    KindAlreadyExists,
		Code:    "already_exists",
		Field:   field,
		Message: fmt.Sprintf("%v already exists", value),
	}
}

// InvalidValue reports a value object that failed validation.
func InvalidValue(field, msg string) *Error {
	return &Error{
		Kind:    KindInvalidValue,
		Code:    "invalid_value_object",
		Field:   field,
		Message: msg,
	}
}

// Wrap attaches a cause to a copy of sentinel so errors.Is matches both.
func Wrap(sentinel *Error, cause error) *Error {
	cp := *sentinel
	cp.Cause = cause
	return &cp
}
