package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/postgres"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Runs the shared store suite against a real PostgreSQL.
//
//	GO_TEST_INTEGRATION=1 go test ./internal/auth/store/drivers/postgres -run Integration -v
func TestIntegrationPostgresStore(t *testing.T) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "auth"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/auth?sslmode=disable", host, port.Port())

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.NewStore(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.ApplyMigrations(ctx))

		// Each subtest starts from empty tables.
		_, err = s.DB().ExecContext(ctx, `TRUNCATE refresh_tokens, users`)
		require.NoError(t, err)

		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
