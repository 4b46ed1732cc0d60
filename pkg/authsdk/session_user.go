package authsdk

import (
	"context"
	"net/http"
)

// Me returns the profile of the authenticated user.
func (s *Session) Me(ctx context.Context) (*UserProfile, error) {
	return sessionCall[UserProfile](ctx, s, http.MethodGet, "/v1/auth/me", nil)
}

// ListRoles lists every role and its permissions. The caller needs
// role:manage.
func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	return sessionCall[ListRolesResponse](ctx, s, http.MethodGet, "/v1/roles", nil)
}

// LogoutAll revokes every refresh token of the authenticated user,
// including this session's.
func (s *Session) LogoutAll(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout/all", nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// ChangePassword replaces the password after checking the current one.
// Every refresh token of the user is revoked, this session's included.
func (s *Session) ChangePassword(ctx context.Context, current, next string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/auth/password/change",
		PasswordChangeRequest{CurrentPassword: current, NewPassword: next})
}

// ChangeEmail moves the account to a new address and emails it a
// verification code.
func (s *Session) ChangeEmail(ctx context.Context, email string) (*MessageResponse, error) {
	return sessionCall[MessageResponse](ctx, s, http.MethodPost, "/v1/auth/email/change", EmailRequest{Email: email})
}
