package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/memory"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.NewStore() })
}

func TestPingFailure(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.Ping(context.Background()))

	down := errors.New("down")
	s.SetPingError(down)
	require.ErrorIs(t, s.Ping(context.Background()), down)

	s.SetPingError(nil)
	require.NoError(t, s.Close())
	require.Error(t, s.Ping(context.Background()))
}

func TestCancelledContext(t *testing.T) {
	s := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Users().GetUserByEmail(ctx, "a@b.co")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRevokeWaitsForTransaction(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	u := storetest.NewUser("nia@example.com", domain.RoleUser)
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx,
		storetest.NewRefreshToken(u.ID, "contested", time.Now().Add(time.Hour))))

	revokedInTx := make(chan struct{})
	txErr := make(chan error, 1)
	go func() {
		txErr <- s.WithTx(ctx, func(tx store.Tx) error {
			if _, err := tx.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "contested"); err != nil {
				return err
			}
			close(revokedInTx)
			time.Sleep(20 * time.Millisecond)
			return errors.New("issue failed")
		})
	}()

	<-revokedInTx
	// A logout racing a rotation that later rolls back must not be undone.
	ok, err := s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "contested")
	require.NoError(t, err)
	require.True(t, ok)
	require.Error(t, <-txErr)

	rec, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "contested")
	require.NoError(t, err)
	require.True(t, rec.Revoked)
}
