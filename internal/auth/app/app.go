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

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/tollgate/internal/auth/http"
	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/internal/auth/store"
	"github.com/aussiebroadwan/tollgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
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
	db         store.Store
	redis      redis.UniversalClient
	keys       *jwtx.KeyStore
	revocation *revocation.Store

	// Services
	sessions      *service.SessionService
	accounts      *service.AccountService
	serviceTokens *service.ServiceTokens
	housekeeping  *service.Housekeeping

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
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keys, err := LoadSigningKeys(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	app.keys = keys

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler is the fully wired HTTP handler, for embedding and tests.
func (app *Application) Handler() http.Handler { return app.router }

// ServiceTokens mints tokens for the internal endpoints.
func (app *Application) ServiceTokens() *service.ServiceTokens { return app.serviceTokens }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if err := app.housekeeping.Start(); err != nil {
		return fmt.Errorf("start housekeeping: %w", err)
	}

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeeping.Stop()
			_ = app.close()
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

	app.housekeeping.Stop()

	if err := app.close(); err != nil {
		app.logger.Error("error closing dependencies", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// close releases the database and Redis connections.
func (app *Application) close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	users, err := db.Users().CountUsers(context.Background())
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to query users: %w", err)
	}

	app.logger.Info("database ready", "file", app.cfg.DatabaseFile, "users", users)
	return nil
}

// initRedis connects the revocation store. An unreachable Redis is not
// fatal: the fail-open and fail-closed policies take over until it is back,
// and /readyz reports it.
func (app *Application) initRedis() error {
	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	app.redis = redis.NewClient(opts)

	app.revocation = revocation.New(app.redis, revocation.Options{
		OpTimeout:      app.cfg.RedisOpTimeout,
		EpochRetention: app.cfg.EpochRetention,
	})

	if err := app.revocation.Ping(context.Background()); err != nil {
		app.logger.Warn("revocation store unreachable at startup", "addr", opts.Addr, "err", err)
	} else {
		app.logger.Info("revocation store connected", "addr", opts.Addr)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	issuer := jwtx.NewIssuer(app.keys, jwtx.IssuerConfig{
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	})
	validator := jwtx.NewValidator(app.keys, jwtx.ValidatorOptions{
		Issuers:   app.cfg.AllowedIssuers,
		Audiences: app.cfg.AllowedAudiences,
		Leeway:    app.cfg.Leeway,
	})

	app.sessions = &service.SessionService{
		Issuer:     issuer,
		Validator:  validator,
		Revocation: app.revocation,
		Leeway:     app.cfg.Leeway,
	}

	loginGate, registerGate := app.attemptGates()
	app.accounts = &service.AccountService{
		Store:        app.db,
		Hasher:       cryptox.NewPasswordHasher(pepper),
		Sessions:     app.sessions,
		Captcha:      service.NewRemoteCaptcha(app.cfg.Captcha),
		LoginGate:    loginGate,
		RegisterGate: registerGate,
	}
	app.sessions.Subjects = app.accounts

	app.serviceTokens = &service.ServiceTokens{Issuer: issuer, Validator: validator}

	app.housekeeping = service.NewHousekeeping(app.logger, app.cfg.AttemptSweepSchedule, map[string]service.AttemptGate{
		"login":    loginGate,
		"register": registerGate,
	})
	return nil
}

func (app *Application) attemptGates() (login, register service.AttemptGate) {
	policy := service.AttemptPolicy{
		Threshold: app.cfg.AttemptThreshold,
		Window:    app.cfg.AttemptWindow,
	}
	if app.cfg.AttemptBackend == AttemptBackendRedis {
		app.logger.Info("attempt gates shared through redis")
		return service.NewRedisAttemptGate(app.redis, "login", policy, app.cfg.RedisOpTimeout),
			service.NewRedisAttemptGate(app.redis, "register", policy, app.cfg.RedisOpTimeout)
	}
	return service.NewMemoryAttemptGate(policy), service.NewMemoryAttemptGate(policy)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, app.db, app.revocation, BuildVersion, app.logger)
	router.Cookies = httpapi.CookieConfig{
		Secure: app.cfg.IsProd(),
		MaxAge: app.cfg.RefreshTTL,
	}
	router.Accounts = app.accounts
	router.Sessions = app.sessions
	router.ServiceTokens = app.serviceTokens
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
