package auth_test

import (
	"testing"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestInvalidCredentials verifies that a wrong password and an unknown email
// are rejected with the same error.
func TestInvalidCredentials(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	registerAccount(t, client, "nyoman@example.com", "user")

	_, err := client.Login(t.Context(), "nyoman@example.com", "wrong-password")
	assertAPIError(t, err, authsdk.ErrInvalidCredentials)

	_, err = client.Login(t.Context(), "nobody@example.com", testPassword)
	assertAPIError(t, err, authsdk.ErrInvalidCredentials)
}

// TestInvalidAccessToken verifies that protected endpoints reject bad bearer
// tokens.
func TestInvalidAccessToken(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))

	invalidSession := client.NewSessionFromTokens("invalid-token-12345", "", 3600)
	_, err := invalidSession.Me(t.Context())
	assertAPIError(t, err, authsdk.ErrUnauthorized)
}

// TestRoleEnforcement verifies the role gates on the provider and admin
// endpoints.
func TestRoleEnforcement(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	ctx := t.Context()

	user := registerAccount(t, client, "putu@example.com", "user")
	provider := registerAccount(t, client, "komang@example.com", "provider")

	me, err := user.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "user", me.Role)

	_, err = user.ProviderMe(ctx)
	assertAPIError(t, err, authsdk.ErrForbidden)

	me, err = provider.ProviderMe(ctx)
	require.NoError(t, err)
	require.Equal(t, "provider", me.Role)

	_, err = provider.AdminMe(ctx)
	assertAPIError(t, err, authsdk.ErrForbidden)

	// Admin accounts cannot be self-registered.
	_, err = client.Register(ctx, authsdk.RegisterRequest{Email: "root@example.com", Password: testPassword, Role: "admin"})
	require.Error(t, err)
}

// TestThrottle verifies the login endpoint answers 429 once the per-client
// budget is spent, and that other endpoints keep their own budget.
func TestThrottle(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithLimit(t, 3))
	ctx := t.Context()

	for range 3 {
		_, err := client.Login(ctx, "gede@example.com", "wrong-password")
		assertAPIError(t, err, authsdk.ErrInvalidCredentials)
	}

	_, err := client.Login(ctx, "gede@example.com", "wrong-password")
	assertAPIError(t, err, authsdk.ErrRateLimited)

	_, err = client.Register(ctx, authsdk.RegisterRequest{Email: "gede@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)
}
