/*
Package authsdk is the client SDK for the Ascort authentication service and
the home of the error catalogue that service writes.

# SDKClient vs Session

  - SDKClient: unauthenticated calls (register, login, refresh, logout, health)
  - Session: calls made with a bearer access token, refreshed automatically

Create an SDKClient and authenticate to get a Session:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "ana@example.com", "correct horse")
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == authsdk.CodeInvalidCredentials {
			// wrong email or password
		}
	}

	me, err := session.Me(ctx)

# Token rotation

Refresh tokens are single use. Every successful refresh returns a new pair and
revokes the old refresh token; presenting the old one again fails with
refresh_revoked. Sessions serialise refreshes behind a mutex so concurrent
callers never race each other onto a stale token.

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status and
the stable error code (invalid_body, email_in_use, invalid_credentials,
invalid_refresh, refresh_revoked, refresh_expired, unauthorized, forbidden,
rate_limited, server_error). The server uses the same values to write them.
*/
package authsdk
