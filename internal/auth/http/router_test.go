package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	authhttp "github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/http"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/service"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/memory"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/idx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testIssuer   = "https://auth.example.test"
	testPassword = "correct horse battery"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testServer struct {
	srv    *httptest.Server
	client *authsdk.SDKClient
	store  *memory.Store
	hasher *cryptox.Hasher
}

func newTestServer(t *testing.T, limit httpx.RateLimitConfig) *testServer {
	t.Helper()

	st := memory.NewStore()
	m := metrics.New()

	signer, err := jwtx.NewSignerHS256("test", testSecret)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{Issuer: testIssuer})
	require.NoError(t, err)
	hasher, err := cryptox.NewHasher(cryptox.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	tokens := &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      st,
		Issuer:     testIssuer,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		Metrics:    m,
	}

	r := authhttp.NewRouter(verifier, httpx.NewMemoryThrottle(limit), "test", st, m, slogx.Discard())
	r.AuthService = &service.AuthService{Store: st, Hasher: hasher, Tokens: tokens, Metrics: m}
	r.TokenService = tokens
	r.Use(httpx.CORS(httpx.CORSConfig{AllowedOrigins: []string{"https://app.example.test"}}))
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:    srv,
		client: authsdk.NewSDKClient(srv.URL),
		store:  st,
		hasher: hasher,
	}
}

var generous = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

func (ts *testServer) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testServer) get(t *testing.T, path, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) authsdk.ErrorResponse {
	t.Helper()
	var out authsdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func base64URL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func (ts *testServer) seedAdmin(t *testing.T, email string) {
	t.Helper()
	hash, err := ts.hasher.Hash(testPassword)
	require.NoError(t, err)
	require.NoError(t, ts.store.Users().CreateUser(context.Background(), domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}))
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	reg, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "ana@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", reg.TokenType)
	require.Equal(t, 900, reg.ExpiresIn)

	session, err := ts.client.AuthenticateWithPassword(ctx, "Ana@Example.com", testPassword)
	require.NoError(t, err)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", me.Email)
	require.Equal(t, "user", me.Role)
	require.NotNil(t, me.LastLogin)

	old := session.RefreshToken()
	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, old, session.RefreshToken())

	_, err = ts.client.Refresh(ctx, old)
	require.ErrorIs(t, err, authsdk.ErrRefreshRevoked)

	current := session.RefreshToken()
	require.NoError(t, session.Logout(ctx))
	_, err = ts.client.Refresh(ctx, current)
	require.ErrorIs(t, err, authsdk.ErrRefreshRevoked)

	// Logout stays quiet about tokens it never saw.
	require.NoError(t, ts.client.Logout(ctx, current))
	require.NoError(t, ts.client.Logout(ctx, "never-issued-token"))
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	_, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "bob@example.com", Password: testPassword, Role: "provider"})
	require.NoError(t, err)

	_, err = ts.client.Register(ctx, authsdk.RegisterRequest{Email: "BOB@example.com", Password: testPassword, Role: "user"})
	require.ErrorIs(t, err, authsdk.ErrEmailInUse)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad email", `{"email":"nope","password":"correct horse battery","role":"user"}`, "email"},
		{"short password", `{"email":"c@example.com","password":"short","role":"user"}`, "password"},
		{"admin role", `{"email":"c@example.com","password":"correct horse battery","role":"admin"}`, "role"},
		{"unknown role", `{"email":"c@example.com","password":"correct horse battery","role":"customer"}`, "role"},
		{"missing role", `{"email":"c@example.com","password":"correct horse battery"}`, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.post(t, "/auth/register", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeError(t, resp)
			require.Equal(t, authsdk.CodeInvalidBody, body.Error)
			require.NotNil(t, body.Details)
			require.Contains(t, body.Details.Fields, tt.field)
		})
	}

	t.Run("not json", func(t *testing.T) {
		resp := ts.post(t, "/auth/register", `email=x`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, authsdk.CodeInvalidBody, decodeError(t, resp).Error)
	})
}

func TestLoginErrors(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	_, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "carol@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)

	_, err = ts.client.Login(ctx, "carol@example.com", "wrong password")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	_, err = ts.client.Login(ctx, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	resp := ts.post(t, "/auth/login", `{"email":"carol@example.com","password":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshErrors(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	pair, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "dave@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)

	_, err = ts.client.Refresh(ctx, "definitely-not-a-jwt")
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	_, err = ts.client.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	resp := ts.post(t, "/auth/refresh", `{"refreshToken":"short"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decodeError(t, resp).Details.Fields, "refreshToken")
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	pair, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "erin@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
		codes    = map[string]int{}
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(authsdk.RefreshRequest{RefreshToken: pair.RefreshToken})
			resp, err := http.Post(ts.srv.URL+"/auth/refresh", "application/json", bytes.NewReader(body))
			if err != nil {
				return
			}
			defer resp.Body.Close()

			var out authsdk.ErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&out)

			mu.Lock()
			defer mu.Unlock()
			statuses[resp.StatusCode]++
			if out.Error != "" {
				codes[out.Error]++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, statuses[http.StatusOK])
	require.Equal(t, workers-1, statuses[http.StatusUnauthorized])
	require.Equal(t, workers-1, codes[authsdk.CodeRefreshRevoked])
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	_, err := ts.client.Register(ctx, authsdk.RegisterRequest{Email: "user@example.com", Password: testPassword, Role: "user"})
	require.NoError(t, err)
	_, err = ts.client.Register(ctx, authsdk.RegisterRequest{Email: "prov@example.com", Password: testPassword, Role: "provider"})
	require.NoError(t, err)
	ts.seedAdmin(t, "admin@example.com")

	user, err := ts.client.AuthenticateWithPassword(ctx, "user@example.com", testPassword)
	require.NoError(t, err)
	provider, err := ts.client.AuthenticateWithPassword(ctx, "prov@example.com", testPassword)
	require.NoError(t, err)
	admin, err := ts.client.AuthenticateWithPassword(ctx, "admin@example.com", testPassword)
	require.NoError(t, err)

	t.Run("user is forbidden from admin routes", func(t *testing.T) {
		_, err := user.AdminMe(ctx)
		require.ErrorIs(t, err, authsdk.ErrForbidden)
		_, err = user.ProviderMe(ctx)
		require.ErrorIs(t, err, authsdk.ErrForbidden)
	})

	t.Run("provider reaches provider route only", func(t *testing.T) {
		me, err := provider.ProviderMe(ctx)
		require.NoError(t, err)
		require.Equal(t, "provider", me.Role)
		_, err = provider.AdminMe(ctx)
		require.ErrorIs(t, err, authsdk.ErrForbidden)
	})

	t.Run("admin reaches everything", func(t *testing.T) {
		_, err := admin.ProviderMe(ctx)
		require.NoError(t, err)
		me, err := admin.AdminMe(ctx)
		require.NoError(t, err)
		require.Equal(t, "admin", me.Role)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := ts.get(t, "/me", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
		require.Equal(t, authsdk.CodeUnauthorized, decodeError(t, resp).Error)
	})

	t.Run("token from another key", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256("", []byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewClaims(jwtx.TokenTypeAccess, "someone", "admin", "x@example.com", time.Minute, testIssuer, nil, time.Now()))
		require.NoError(t, err)

		resp := ts.get(t, "/admin/me", tok)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(user.AccessToken(), ".")
		require.Len(t, parts, 3)
		forged := jwtx.NewClaims(jwtx.TokenTypeAccess, "someone", "admin", "x@example.com", time.Minute, testIssuer, nil, time.Now())
		payload, err := json.Marshal(forged)
		require.NoError(t, err)
		parts[1] = base64URL(payload)

		resp := ts.get(t, "/admin/me", strings.Join(parts, "."))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh token is not a bearer", func(t *testing.T) {
		resp := ts.get(t, "/me", user.RefreshToken())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestThrottle(t *testing.T) {
	ts := newTestServer(t, httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2})

	body := `{"email":"nobody@example.com","password":"whatever"}`
	for range 2 {
		resp := ts.post(t, "/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := ts.post(t, "/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, authsdk.CodeRateLimited, decodeError(t, resp).Error)

	// A forged forwarding header does not buy a new budget.
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/auth/login", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.77")
	spoofed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer spoofed.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, spoofed.StatusCode)

	// Counters are per endpoint.
	resp = ts.post(t, "/auth/refresh", `{"refreshToken":"0123456789"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logout is not throttled.
	for range 3 {
		resp = ts.post(t, "/auth/logout", `{"refreshToken":"0123456789"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestSystemEndpoints(t *testing.T) {
	ts := newTestServer(t, generous)
	ctx := context.Background()

	ok, err := ts.client.GetHealth(ctx)
	require.NoError(t, err)
	require.True(t, ok.OK)

	live, err := ts.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := ts.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)

	ts.store.SetPingError(context.DeadlineExceeded)
	resp := ts.get(t, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	ts.store.SetPingError(nil)

	_, err = ts.client.Login(ctx, "nobody@example.com", testPassword)
	require.Error(t, err)

	resp = ts.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `auth_logins_total{result="invalid_credentials"} 1`)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, generous)

	req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.example.test", resp.Header.Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
