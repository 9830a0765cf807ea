package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mealsphere/identity/internal/identity/service"
	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/internal/identity/store/drivers/sqlite"
	"github.com/mealsphere/identity/pkg/cryptox"
	"github.com/mealsphere/identity/pkg/jwtx"
	"github.com/mealsphere/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the identity services to their dependencies. Transports
// (HTTP, gRPC, whatever fronts this) embed or construct an Application and
// call the exposed services directly.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	authService         *service.AuthService
	passwordService     *service.PasswordService
	mfaService          *service.MFAService
	oauthService        *service.OAuthService
	rolesService        *service.RolesService
	housekeepingService *service.HousekeepingService
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts background work and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx := slogx.WithContext(context.Background(), app.logger)
	app.housekeepingService.Start(ctx)

	app.logger.Info("identity service started", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops background work and releases resources, bounded by the
// configured grace period.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		app.housekeepingService.Stop()
		app.passwordService.Close()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		app.logger.Warn("background services did not stop within the grace period")
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// Auth returns the authentication service.
func (app *Application) Auth() *service.AuthService { return app.authService }

// Passwords returns the password management service.
func (app *Application) Passwords() *service.PasswordService { return app.passwordService }

// MFA returns the MFA enrollment service.
func (app *Application) MFA() *service.MFAService { return app.mfaService }

// OAuth returns the external provider login service.
func (app *Application) OAuth() *service.OAuthService { return app.oauthService }

// Roles returns the role management service.
func (app *Application) Roles() *service.RolesService { return app.rolesService }

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	issuer, err := jwtx.NewIssuer(app.cfg.Issuer, app.cfg.SessionTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	mailer := service.LogMailer{}

	app.authService = &service.AuthService{
		Store:             app.db,
		Tokens:            issuer,
		Mailer:            mailer,
		MaxFailedAttempts: app.cfg.MaxFailedAttempts,
		LockDuration:      app.cfg.LockDuration,
	}

	app.passwordService = &service.PasswordService{
		Store:         app.db,
		Mailer:        mailer,
		ResetTokenTTL: app.cfg.ResetTokenTTL,
		ResetBaseURL:  app.cfg.ResetBaseURL,
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	// Validator is provided by whatever fronts this application; each
	// transport knows which providers it accepts.
	app.oauthService = &service.OAuthService{
		Store: app.db,
		Auth:  app.authService,
	}

	app.rolesService = &service.RolesService{Store: app.db}

	app.housekeepingService = &service.HousekeepingService{
		Store:    app.db,
		Interval: app.cfg.HousekeepingInterval,
	}

	return nil
}
