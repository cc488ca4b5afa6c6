package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/service"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"

	_ "github.com/Gaia-Digital-Agency/ascort-bali/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	throttle     httpx.Throttle
	metrics      *metrics.Metrics
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	AuthService  *service.AuthService
	TokenService *service.TokenService

	// ClientKey identifies the caller for throttling. Defaults to the peer
	// address.
	ClientKey httpx.KeyExtractor
}

func NewRouter(
	verifier jwtx.Verifier,
	throttle httpx.Throttle,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		throttle:     throttle,
		metrics:      m,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// Use appends global middleware. It runs inside the request logger.
func (r *Router) Use(mws ...httpx.Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerIdentity()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Ascort Bali Authentication API
//	@version		0.1.0
//	@description	Password login with short-lived JWT access tokens and rotating refresh tokens.
//	@description
//	@description				A refresh token can be exchanged exactly once. Presenting it again fails with refresh_revoked.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) throttled(h http.Handler, scope string) http.Handler {
	if r.throttle == nil {
		return h
	}
	keyFn := r.ClientKey
	if keyFn == nil {
		keyFn = httpx.IPKeyExtractor
	}
	return httpx.Chain(h,
		httpx.ThrottleMiddleware(r.throttle, scope, keyFn, r.metrics.Throttled),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:  r.AuthService,
		TokenService: r.TokenService,
	}

	// Credential and refresh endpoints share the strict per-IP budget, each
	// in its own counter.
	r.Mux.Handle("POST /auth/register", r.throttled(http.HandlerFunc(h.HandleRegister), "register"))
	r.Mux.Handle("POST /auth/login", r.throttled(http.HandlerFunc(h.HandleLogin), "login"))
	r.Mux.Handle("POST /auth/refresh", r.throttled(http.HandlerFunc(h.HandleRefresh), "refresh"))
	r.Mux.Handle("POST /auth/logout", http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerIdentity() {
	h := &MeHandler{AuthService: r.AuthService}

	r.Mux.Handle("GET /me",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
		),
	)
	r.Mux.Handle("GET /provider/me",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleProvider.String(), domain.RoleAdmin.String()),
		),
	)
	r.Mux.Handle("GET /admin/me",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin.String()),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health", HealthHandler())
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
