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

	"github.com/aussiebroadwan/parish/internal/auth/events"
	httpapi "github.com/aussiebroadwan/parish/internal/auth/http"
	"github.com/aussiebroadwan/parish/internal/auth/i18n"
	"github.com/aussiebroadwan/parish/internal/auth/service"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/parish/pkg/cryptox"
	"github.com/aussiebroadwan/parish/pkg/httpx"
	"github.com/aussiebroadwan/parish/pkg/jwtx"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Audience is stamped on every access token.
const Audience = "parish"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   *jwtx.Signer
	verifier *jwtx.Verifier
	catalog  *i18n.Catalog
	bus      *events.Bus

	authService         *service.AuthService
	userService         *service.UserService
	rolesService        *service.RolesService
	permissionService   *service.PermissionService
	bootstrapService    *service.BootstrapService
	authz               *service.AuthorizationService
	loginService        *service.LoginService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "parish-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initKeys(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	catalog, err := i18n.LoadEmbedded(cfg.DefaultLocale)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}
	app.catalog = catalog

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
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

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initKeys loads the signing key, creating it on first start. Tokens
// survive restarts as long as the key file does.
func (app *Application) initKeys() error {
	key, err := cryptox.LoadOrCreateEd25519Key(app.cfg.SigningKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	signer, err := jwtx.NewSigner(cryptox.KeyID(key), key)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	app.signer = signer
	app.verifier = jwtx.NewVerifier(jwtx.VerifyOptions{
		Issuer:   app.cfg.Issuer,
		Audience: []string{Audience},
		Leeway:   30 * time.Second,
	})
	app.verifier.AddSigner(signer)

	app.logger.Info("signing key loaded", "kid", signer.KID(), "alg", signer.Alg())
	return nil
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	clock := service.SystemClock{}
	secrets := service.CryptoSecrets{}
	notifier := service.LogNotifier{}
	authz := &service.AuthorizationService{}
	app.authz = authz
	hasher := cryptox.NewHasher(pepper)
	validator := service.NewPermissionValidator(service.DefaultPermissionConflicts())

	eventService := &service.EventService{Store: app.db, Logger: app.logger}
	app.bus = events.NewBus(eventService.Handlers())

	app.authService = &service.AuthService{
		Store:   app.db,
		Clock:   clock,
		Secrets: secrets,
		TOTP: &service.PquernaTOTP{
			Issuer: app.cfg.Issuer,
			Period: uint(app.cfg.OtpStepSeconds),
			Digits: app.cfg.OtpDigits,
			Skew:   1,
		},
		Notifier: notifier,
		Events:   app.bus,
		Config: service.AuthConfig{
			OtpExpiry:               time.Duration(app.cfg.OtpExpiresInMinutes) * time.Minute,
			RefreshTokenTTL:         app.cfg.RefreshTokenExpiresIn.Duration(),
			EmailVerificationExpiry: time.Duration(app.cfg.EmailVerificationExpiresMins) * time.Minute,
			ChallengeTTL:            app.cfg.TwoFactorChallengeTTL,
		},
	}

	app.userService = &service.UserService{
		Store:            app.db,
		Hasher:           hasher,
		Clock:            clock,
		Secrets:          secrets,
		Notifier:         notifier,
		Authz:            authz,
		Events:           app.bus,
		PasswordResetTTL: app.cfg.PasswordResetExpiresIn,
	}

	app.rolesService = &service.RolesService{
		Store:     app.db,
		Clock:     clock,
		Authz:     authz,
		Validator: validator,
		Events:    app.bus,
	}

	app.permissionService = &service.PermissionService{Store: app.db, Clock: clock}

	app.bootstrapService = &service.BootstrapService{
		Store:     app.db,
		Hasher:    hasher,
		Clock:     clock,
		Validator: validator,
		Events:    app.bus,
		Token:     app.cfg.BootstrapToken,
	}
	if app.bootstrapService.Enabled() {
		app.logger.Warn("bootstrap endpoint enabled", "route", "POST /v1/bootstrap")
	}

	app.loginService = &service.LoginService{
		Users: app.userService,
		Auth:  app.authService,
		Store: app.db,
		Tokens: &service.JWTIssuer{
			Signer:    app.signer,
			Auth:      app.authService,
			Clock:     clock,
			Issuer:    app.cfg.Issuer,
			Audience:  []string{Audience},
			AccessTTL: app.cfg.AccessTokenTTL,
		},
		Translator: app.catalog,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		clock,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		app.catalog,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Limits = httpapi.Limits{
		Strict:   httpx.PerMinute(app.cfg.RateLimitStrict),
		Moderate: httpx.PerMinute(app.cfg.RateLimitModerate),
		Public:   httpx.PerMinute(app.cfg.RateLimitPublic),
	}
	router.LoginService = app.loginService
	router.AuthService = app.authService
	router.UserService = app.userService
	router.RolesService = app.rolesService
	router.PermissionService = app.permissionService
	router.Authz = app.authz
	if app.bootstrapService.Enabled() {
		router.BootstrapService = app.bootstrapService
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
