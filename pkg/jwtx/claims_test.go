package jwtx_test

import (
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "ascort-auth",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("ascort-auth"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("someone-else"), jwtx.ErrIssuer)
	})
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: []string{"web", "mobile"},
		},
	}

	require.NoError(t, c.ValidateAudience([]string{"web"}))
	require.NoError(t, c.ValidateAudience([]string{"foo", "mobile"}))
	require.NoError(t, c.ValidateAudience(nil))
	require.ErrorIs(t, c.ValidateAudience([]string{"admin"}), jwtx.ErrAudience)
}

func TestValidateExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := jwtx.NewClaims(jwtx.TokenTypeAccess, "u1", "user", "a@b.co", time.Minute, "iss", nil, now)

	t.Run("within lifetime", func(t *testing.T) {
		require.NoError(t, c.ValidateExpiry(now.Add(30*time.Second), 0))
	})

	t.Run("exactly at exp is expired", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateExpiry(now.Add(time.Minute), 0), jwtx.ErrExpired)
	})

	t.Run("leeway extends", func(t *testing.T) {
		require.NoError(t, c.ValidateExpiry(now.Add(time.Minute+5*time.Second), 10*time.Second))
	})

	t.Run("not yet valid", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateExpiry(now.Add(-time.Minute), 0), jwtx.ErrNotYetValid)
	})

	t.Run("missing exp", func(t *testing.T) {
		var empty jwtx.Claims
		require.ErrorIs(t, empty.ValidateExpiry(now, 0), jwtx.ErrInvalidClaim)
	})
}

func TestNewClaimsUniqueJTI(t *testing.T) {
	now := time.Now()
	a := jwtx.NewClaims(jwtx.TokenTypeRefresh, "u1", "", "", time.Hour, "iss", nil, now)
	b := jwtx.NewClaims(jwtx.TokenTypeRefresh, "u1", "", "", time.Hour, "iss", nil, now)

	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.NoError(t, a.ValidateType(jwtx.TokenTypeRefresh))
	require.ErrorIs(t, a.ValidateType(jwtx.TokenTypeAccess), jwtx.ErrTokenType)
}
