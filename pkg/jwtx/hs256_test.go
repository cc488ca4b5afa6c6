package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://auth.example.test"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHS256Pair(t *testing.T, opts jwtx.VerifyOptions) (jwtx.Signer, jwtx.Verifier) {
	t.Helper()
	signer, err := jwtx.NewSignerHS256("hs-1", testSecret)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierHS256(testSecret, opts)
	require.NoError(t, err)
	return signer, verifier
}

func TestHS256SignAndVerify(t *testing.T) {
	signer, verifier := newHS256Pair(t, jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: []string{"web"}})
	require.Equal(t, "HS256", signer.Alg())
	require.NoError(t, signer.Validate())

	claims := jwtx.NewClaims(jwtx.TokenTypeRefresh, "user-1", "", "", time.Hour, exampleIssuer, []string{"web"}, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", parsed.Subject)
	require.Equal(t, jwtx.TokenTypeRefresh, parsed.Type)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256("", []byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)

	_, err = jwtx.NewVerifierHS256([]byte("short"), jwtx.VerifyOptions{})
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestHS256VerifyFailures(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	signer, _ := newHS256Pair(t, jwtx.VerifyOptions{})

	sign := func(c jwtx.Claims) string {
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}
	good := jwtx.NewClaims(jwtx.TokenTypeAccess, "u", "user", "", time.Minute, exampleIssuer, []string{"web"}, now)

	tests := []struct {
		name  string
		token string
		opts  jwtx.VerifyOptions
		want  error
	}{
		{"malformed", "not.a.jwt", jwtx.VerifyOptions{}, jwtx.ErrMalformed},
		{"empty", "", jwtx.VerifyOptions{}, jwtx.ErrMalformed},
		{"tampered", sign(good)[:len(sign(good))-2] + "xx", jwtx.VerifyOptions{Now: func() time.Time { return now }}, jwtx.ErrInvalidSig},
		{"wrong issuer", sign(good), jwtx.VerifyOptions{Issuer: "other", Now: func() time.Time { return now }}, jwtx.ErrIssuer},
		{"wrong audience", sign(good), jwtx.VerifyOptions{Audience: []string{"mobile"}, Now: func() time.Time { return now }}, jwtx.ErrAudience},
		{"expired", sign(good), jwtx.VerifyOptions{Now: func() time.Time { return now.Add(2 * time.Minute) }}, jwtx.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := jwtx.NewVerifierHS256(testSecret, tt.opts)
			require.NoError(t, err)
			_, err = v.Verify(tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHS256ExpiredStillReturnsClaims(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	signer, verifier := newHS256Pair(t, jwtx.VerifyOptions{Now: func() time.Time { return now.Add(time.Hour) }})

	claims := jwtx.NewClaims(jwtx.TokenTypeRefresh, "u-9", "", "", time.Minute, exampleIssuer, nil, now)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	parsed, err := verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
	require.Equal(t, "u-9", parsed.Subject)
	require.Equal(t, claims.ID, parsed.ID)
}

func TestHS256RejectsOtherSecret(t *testing.T) {
	signer, _ := newHS256Pair(t, jwtx.VerifyOptions{})
	token, err := signer.Sign(jwtx.NewClaims(jwtx.TokenTypeAccess, "u", "user", "", time.Minute, "", nil, time.Now()))
	require.NoError(t, err)

	other, err := jwtx.NewVerifierHS256([]byte(strings.Repeat("z", 32)), jwtx.VerifyOptions{})
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}
