package domain_test

import (
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"user", "provider", "admin"} {
		r, err := domain.ParseRole(s)
		require.NoError(t, err)
		require.Equal(t, s, r.String())
	}

	_, err := domain.ParseRole("superuser")
	require.Error(t, err)
	_, err = domain.ParseRole("")
	require.Error(t, err)
}

func TestSelfRegistrable(t *testing.T) {
	require.True(t, domain.RoleUser.SelfRegistrable())
	require.True(t, domain.RoleProvider.SelfRegistrable())
	require.False(t, domain.RoleAdmin.SelfRegistrable())
}

func TestRefreshTokenExpired(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rt := domain.RefreshToken{ExpiresAt: exp}

	require.False(t, rt.Expired(exp.Add(-time.Nanosecond)))
	require.True(t, rt.Expired(exp))
	require.True(t, rt.Expired(exp.Add(time.Second)))
}
