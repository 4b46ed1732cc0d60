/*
Package authsdk is a Go client for the parish authentication service.

# SDKClient vs Session

SDKClient covers the public endpoints: registration, password reset,
bootstrap, login, two-factor completion, refresh, logout, one-time codes
and email verification. Session wraps a token pair and covers the
authenticated endpoints. It refreshes the access token automatically
shortly before it expires.

	client := authsdk.NewSDKClient("https://auth.example.com")
	client.Language = "es"

	session, resp, err := client.AuthenticateWithPassword(ctx, email, password)
	switch {
	case errors.Is(err, authsdk.ErrNotAuthenticated) && resp.RequiresOtp:
		resp, err = client.CompleteTwoFactor(ctx, resp.ChallengeToken, code)
		if err != nil {
			return err
		}
		session = client.NewSession(resp)
	case errors.Is(err, authsdk.ErrNotAuthenticated) && resp.RequiresEmailVerification:
		_, err = client.SendEmailVerification(ctx, resp.Email)
		return err
	case err != nil:
		return err
	}

	me, err := session.Me(ctx)

# Errors

Every non-2xx response becomes an *APIError carrying the status, a stable
code such as "otp_expired" and a localized description:

	if authsdk.IsCode(err, "otp_expired") {
		// ask for a new code
	}

# Thread Safety

Sessions are safe for concurrent use.
*/
package authsdk
