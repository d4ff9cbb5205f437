package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aussiebroadwan/streamtab/internal/identity/cache"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	httpapi "github.com/aussiebroadwan/streamtab/internal/identity/http"
	"github.com/aussiebroadwan/streamtab/internal/identity/media"
	"github.com/aussiebroadwan/streamtab/internal/identity/metrics"
	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/internal/identity/store/drivers/postgres"
	"github.com/aussiebroadwan/streamtab/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

const metricsNamespace = "identity"

// Application owns the identity service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	tokens   *service.TokenIssuer
	registry *prometheus.Registry
	events   events.Publisher
	stats    *cache.Redis
	media    media.Resolver

	// Services
	credentials  *service.CredentialService
	sessions     *service.SessionService
	accounts     *service.AccountService
	views        *service.ViewBuilder
	history      *service.HistoryService
	housekeeping *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New builds the application. Optional backends (redis, amqp, s3) are only
// dialled when configured, and a failure to reach one is fatal.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	tokens, err := InitTokenIssuer(cfg.Tokens, app.logger)
	if err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.tokens = tokens

	if err := app.initBackends(ctx); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("identity service starting", "port", app.cfg.HTTP.Port, "version", BuildVersion)

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
			app.closeBackends()
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

// Shutdown drains the HTTP server, stops housekeeping and closes the
// backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.HTTP.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Store exposes the database so tests can seed catalogue rows the
// identity API does not write.
func (app *Application) Store() store.Store { return app.db }

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.Database.Driver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.Database.DSN)
	default:
		db, err = sqlite.NewStore(app.cfg.Database.DSN)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

// initBackends sets up metrics, events, the stats cache and media storage.
func (app *Application) initBackends(ctx context.Context) error {
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.events = events.Nop{}
	if c := app.cfg.AMQP; c.URL != "" {
		pub, err := events.Dial(c.URL, c.Exchange, c.Retries, c.RetryDelay)
		if err != nil {
			return fmt.Errorf("failed to connect to amqp: %w", err)
		}
		app.events = pub
		app.logger.Info("account events enabled", "exchange", c.Exchange)
	}

	if c := app.cfg.Redis; c.Addr != "" {
		stats, err := cache.NewRedis(ctx, cache.Options{
			Addr:     c.Addr,
			Username: c.Username,
			Password: c.Password,
			DB:       c.DB,
			TTL:      c.TTL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.stats = stats
		app.logger.Info("channel stats cache enabled", "addr", c.Addr, "ttl", c.TTL)
	}

	switch c := app.cfg.Media; c.Backend {
	case "s3":
		resolver, err := media.NewS3(ctx, media.S3Options{
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			Endpoint:      c.S3Endpoint,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Prefix:        c.S3Prefix,
			PublicBaseURL: c.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize s3 media: %w", err)
		}
		app.media = resolver
	default:
		if err := os.MkdirAll(c.DiskDir, 0o755); err != nil {
			return fmt.Errorf("failed to create media dir: %w", err)
		}
		app.media = &media.Disk{Dir: c.DiskDir, BaseURL: c.PublicBaseURL}
	}
	app.logger.Info("media backend ready", "backend", app.cfg.Media.Backend)

	return os.MkdirAll(app.cfg.HTTP.UploadDir, 0o755)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	auth := metrics.NewAuth(app.registry, metricsNamespace)

	app.credentials = &service.CredentialService{
		Store:   app.db,
		Media:   app.media,
		Events:  app.events,
		Metrics: auth,
	}
	app.sessions = &service.SessionService{
		Store:       app.db,
		Credentials: app.credentials,
		Tokens:      app.tokens,
		Events:      app.events,
		Metrics:     auth,
	}
	app.accounts = &service.AccountService{
		Store:   app.db,
		Media:   app.media,
		Events:  app.events,
		Metrics: auth,
	}
	app.views = &service.ViewBuilder{Store: app.db}
	if app.stats != nil {
		app.views.Stats = app.stats
	}
	app.history = &service.HistoryService{
		Store: app.db,
		Dedup: app.cfg.WatchHistory.Dedup,
		Max:   app.cfg.WatchHistory.Max,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.HTTP.UploadDir,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	opts := httpapi.Options{
		Env:          strings.ToLower(app.cfg.Env),
		UploadDir:    app.cfg.HTTP.UploadDir,
		MaxBodyBytes: app.cfg.HTTP.MaxBodyBytes,
		CORSOrigins:  app.cfg.HTTP.CORSOrigins,
		Limits:       app.cfg.RateLimit.limits(),
	}
	if app.cfg.Media.Backend == "disk" {
		opts.MediaDir = app.cfg.Media.DiskDir
		opts.MediaPath = app.cfg.Media.DiskPath
	}
	if app.cfg.HTTP.MetricsEnabled {
		opts.Registry = app.registry
	}

	router := httpapi.NewRouter(app.tokens.Access, BuildVersion, app.db, app.logger, opts)

	router.Credentials = app.credentials
	router.Sessions = app.sessions
	router.Accounts = app.accounts
	router.Views = app.views
	router.History = app.history
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       app.cfg.HTTP.RequestTimeout,
		WriteTimeout:      app.cfg.HTTP.RequestTimeout,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelWarn),
	}
}

// closeBackends closes whatever has been opened so far. The database error
// is returned; the others are only logged.
func (app *Application) closeBackends() error {
	if app.events != nil {
		if err := app.events.Close(); err != nil {
			app.logger.Error("error closing event publisher", "error", err)
		}
	}
	if app.stats != nil {
		if err := app.stats.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			return err
		}
	}
	return nil
}
