package auth_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, account creation, and assertions.
 *
 * The suite needs a docker daemon and is skipped unless GO_TEST_E2E is set:
 *
 *	GO_TEST_E2E=1 go test ./test/e2e/auth -v
 */

const (
	testImageName = "ascort-auth-test:latest"

	testPassword = "Sunset-Ubud-2024"
)

var e2eEnabled = os.Getenv("GO_TEST_E2E") != ""

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	if !e2eEnabled {
		os.Exit(m.Run())
	}

	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// baseEnv is the container environment shared by every test. Throttle limits
// are raised so that rapid test traffic is not rejected.
func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_ISSUER":       "ascort-auth-e2e",
		"AUTH_ALGORITHM":    "EdDSA",
		"AUTH_BCRYPT_COST":  "4",
		"STORE_DRIVER":      "sqlite",
		"ENV":               "test",
		"LOG_LEVEL":         "info",
		"LOG_FORMAT":        "json",
		"THROTTLE_REQUESTS": "1000",
		"THROTTLE_BURST":    "1000",
	}
}

// setupAuthContainer starts the auth service with relaxed throttle limits and
// returns its base URL.
func setupAuthContainer(t *testing.T) string {
	return startAuthContainer(t, baseEnv())
}

// setupAuthContainerWithLimit starts the auth service allowing requests calls
// per window on each throttled endpoint.
func setupAuthContainerWithLimit(t *testing.T, requests int) string {
	env := baseEnv()
	env["THROTTLE_REQUESTS"] = fmt.Sprint(requests)
	env["THROTTLE_BURST"] = fmt.Sprint(requests)
	env["THROTTLE_WINDOW"] = "1m"
	return startAuthContainer(t, env)
}

func startAuthContainer(t *testing.T, env map[string]string) string {
	t.Helper()
	if !e2eEnabled {
		t.Skip("e2e tests are disabled (set GO_TEST_E2E=1)")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// registerAccount creates an account and returns a session for it.
func registerAccount(t *testing.T, client *authsdk.SDKClient, email, role string) *authsdk.Session {
	t.Helper()
	ctx := t.Context()

	resp, err := client.Register(ctx, authsdk.RegisterRequest{Email: email, Password: testPassword, Role: role})
	require.NoError(t, err, "register should succeed")
	assertTokenResponse(t, resp)

	return client.NewSessionFromTokens(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType)
	require.Positive(t, resp.ExpiresIn)
}

// assertAPIError checks that err is the service error want.
func assertAPIError(t *testing.T, err error, want *authsdk.APIError) {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected an API error, got %v", err)
	require.Equal(t, want.StatusCode, apiErr.StatusCode)
	require.Equal(t, want.Code, apiErr.Code)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
