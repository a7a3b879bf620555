package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/paddockhq/gatehouse/internal/auth/http"
	"github.com/paddockhq/gatehouse/internal/auth/mail"
	"github.com/paddockhq/gatehouse/internal/auth/service"
	"github.com/paddockhq/gatehouse/internal/auth/store"
	"github.com/paddockhq/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/paddockhq/gatehouse/pkg/cryptox"
	"github.com/paddockhq/gatehouse/pkg/jwtx"
	"github.com/paddockhq/gatehouse/pkg/mailq"
	"github.com/paddockhq/gatehouse/pkg/slogx"
	"github.com/paddockhq/gatehouse/pkg/totp"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	rdb   *redis.Client
	codec *jwtx.Codec

	// Services
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService
	mailWorker          *mailq.Worker

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatehouse",
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

	codec, err := jwtx.New(jwtx.Config{
		Issuer:        cfg.Issuer,
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		PreTFASecret:  []byte(cfg.PreTFASecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		PreTFATTL:     cfg.PreTFATTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.mailWorker.Start()
	app.housekeepingService.Start()

	app.logger.Info("gatehouse starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatehouse...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the background workers
	app.housekeepingService.Stop()
	app.mailWorker.Stop()

	if err := app.rdb.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gatehouse stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
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

// initServices initializes the mail pipeline and business logic services
func (app *Application) initServices() error {
	app.rdb = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	queue := mailq.NewQueue(app.rdb, app.cfg.MailQueueKey)

	var sender mailq.Sender
	if app.cfg.SMTPAddr != "" {
		sender = &mail.SMTPSender{Addr: app.cfg.SMTPAddr, From: app.cfg.SMTPFrom}
	} else {
		app.logger.Warn("no SMTP relay configured, mail will only be logged")
		sender = mail.LogSender{}
	}
	app.mailWorker = mailq.NewWorker(queue, sender, app.logger)

	cipher, err := cryptox.NewSecretCipher([]byte(app.cfg.MasterKey))
	if err != nil {
		return fmt.Errorf("failed to initialize secret cipher: %w", err)
	}

	app.authService = &service.AuthService{
		Store:   app.db,
		Codec:   app.codec,
		TOTP:    &totp.Engine{Issuer: app.cfg.Issuer, Tolerance: uint(max(app.cfg.TOTPTolerance, 0))},
		Secrets: cipher,
		Mailer:  mail.NewMailer(queue),

		BackupTokenCount: app.cfg.BackupTokenCount,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.authService, app.logger)
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
