package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/http"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/service"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/memory"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/postgres"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store/drivers/sqlite"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	redis    *redis.Client // nil unless THROTTLE_BACKEND=redis
	throttle httpx.Throttle
	metrics  *metrics.Metrics
	signer   jwtx.Signer
	verifier jwtx.Verifier
	hasher   *cryptox.Hasher

	// Services
	authService         *service.AuthService
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	signer, verifier, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.signer, app.verifier = signer, verifier

	app.hasher, err = cryptox.NewHasher(cryptox.Algorithm(cfg.PasswordAlgorithm), cfg.BcryptCost)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initThrottle(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"throttle", app.cfg.ThrottleBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.StoreDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	case DriverMemory:
		app.logger.Warn("using in-memory store; all accounts are lost on restart")
		db = memory.NewStore()
	default:
		db, err = sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initThrottle picks the counter store for the auth endpoints. The redis
// backend is shared by every instance behind a load balancer.
func (app *Application) initThrottle(ctx context.Context) error {
	limit := app.cfg.throttleLimit()

	if app.cfg.ThrottleBackend != ThrottleRedis {
		app.throttle = httpx.NewMemoryThrottle(limit)
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	app.redis = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := app.redis.Ping(pingCtx).Err(); err != nil {
		// The throttle fails open, so keep starting.
		app.logger.Warn("redis unreachable at startup", "error", err)
	}

	app.throttle = httpx.NewRedisThrottle(app.redis, "auth:throttle", limit)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:       app.signer,
		Verifier:     app.verifier,
		Store:        app.db,
		Issuer:       app.cfg.Issuer,
		Audience:     app.cfg.Audience,
		AccessTTL:    app.cfg.AccessTTL,
		RefreshTTL:   app.cfg.RefreshTTL,
		StoreTimeout: app.cfg.StoreTimeout,
		Metrics:      app.metrics,
	}

	app.authService = &service.AuthService{
		Store:   app.db,
		Hasher:  app.hasher,
		Tokens:  app.tokenService,
		Metrics: app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.HousekeepingRetention,
	)
	app.housekeepingService.Metrics = app.metrics
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		app.throttle,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)

	if len(app.cfg.CORSOrigins) > 0 {
		router.Use(httpx.CORS(httpx.CORSConfig{
			AllowedOrigins: app.cfg.CORSOrigins,
			MaxAge:         10 * time.Minute,
		}))
	}

	// Validate has already parsed the list.
	proxies, _ := httpx.ParseTrustedProxies(app.cfg.ThrottleTrustedProxies)
	router.ClientKey = httpx.TrustedProxyKeyExtractor(proxies)

	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
