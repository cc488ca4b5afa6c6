// Package storetest is a behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("refresh tokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("transaction rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("concurrent revoke", func(t *testing.T) { testConcurrentRevoke(t, newStore(t)) })
	t.Run("delete revoked", func(t *testing.T) { testDeleteRevoked(t, newStore(t)) })
}

// base is microsecond aligned so every driver round-trips it exactly.
var base = time.Date(2026, 4, 1, 10, 30, 0, 123000, time.UTC)

func NewUser(email string, role domain.Role) domain.User {
	return domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuN7Yk7nQO6vY7x0m3l9F0qXq3P7a1bK2",
		Role:         role,
		CreatedAt:    base,
	}
}

func NewRefreshToken(userID, hash string, expiresAt time.Time) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("ana@example.com", domain.RoleProvider)
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.Equal(t, domain.RoleProvider, got.Role)
	require.True(t, u.CreatedAt.Equal(got.CreatedAt))
	require.Nil(t, got.LastLoginAt)

	got, err = s.Users().GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().GetUserByID(ctx, idx.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := NewUser("ana@example.com", domain.RoleUser)
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
	dup = NewUser("Ana@Example.com", domain.RoleUser)
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	login := base.Add(time.Hour)
	require.NoError(t, s.Users().UpdateLastLogin(ctx, u.ID, login))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	require.True(t, login.Equal(*got.LastLoginAt))

	require.ErrorIs(t, s.Users().UpdateLastLogin(ctx, idx.New().String(), login), store.ErrNotFound)
}

func testRefreshTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("bob@example.com", domain.RoleUser)
	require.NoError(t, s.Users().CreateUser(ctx, u))

	rt := NewRefreshToken(u.ID, "hash-1", base.Add(24*time.Hour))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)
	require.Equal(t, u.ID, got.UserID)
	require.False(t, got.Revoked)
	require.True(t, rt.ExpiresAt.Equal(got.ExpiresAt))

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := NewRefreshToken(u.ID, "hash-1", base.Add(time.Hour))
	require.ErrorIs(t, s.RefreshTokens().CreateRefreshToken(ctx, dup), store.ErrAlreadyExists)

	revoked, err := s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "hash-1")
	require.NoError(t, err)
	require.False(t, revoked)

	got, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)

	_, err = s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("carol@example.com", domain.RoleUser)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, NewRefreshToken(u.ID, "rolled-back", base.Add(time.Hour))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "rolled-back")
	require.ErrorIs(t, err, store.ErrNotFound)

	// A revoke inside a rolled-back transaction does not stick either.
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, NewRefreshToken(u.ID, "kept", base.Add(time.Hour))))

	err = s.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "kept")
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "kept")
	require.NoError(t, err)
	require.False(t, got.Revoked)

	// And a committed one does.
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "kept")
		return err
	}))
	got, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "kept")
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func testConcurrentRevoke(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("dave@example.com", domain.RoleUser)
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, NewRefreshToken(u.ID, "contended", base.Add(time.Hour))))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, "contended")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				wins++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Equal(t, 1, wins)
}

func testDeleteRevoked(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("erin@example.com", domain.RoleUser)
	require.NoError(t, s.Users().CreateUser(ctx, u))

	records := []struct {
		hash    string
		expires time.Time
		revoked bool
	}{
		{"old-revoked", base.Add(-2 * time.Hour), true},
		{"old-active", base.Add(-time.Minute), false},
		{"live-revoked", base.Add(time.Hour), true},
		{"live-active", base.Add(time.Hour), false},
	}
	for _, rec := range records {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, NewRefreshToken(u.ID, rec.hash, rec.expires)))
		if rec.revoked {
			ok, err := s.RefreshTokens().RevokeRefreshTokenIfActive(ctx, rec.hash)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}

	n, err := s.RefreshTokens().DeleteRevokedRefreshTokens(ctx, base)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "old-revoked")
	require.ErrorIs(t, err, store.ErrNotFound)
	for _, hash := range []string{"old-active", "live-revoked", "live-active"} {
		_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		require.NoError(t, err, hash)
	}
}
