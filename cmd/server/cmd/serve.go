package cmd

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

	"github.com/Togather-Foundation/rsvp/internal/api"
	"github.com/Togather-Foundation/rsvp/internal/api/handlers"
	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/Togather-Foundation/rsvp/internal/auth"
	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/Togather-Foundation/rsvp/internal/jobs"
	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"github.com/Togather-Foundation/rsvp/internal/storage/postgres"
	"github.com/Togather-Foundation/rsvp/internal/storage/sqlite"
	"github.com/Togather-Foundation/rsvp/internal/telemetry"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	dbCollectInterval = 15 * time.Second
)

func newServeCommand() *cobra.Command {
	var (
		// Server flags (override config/env)
		serverHost string
		serverPort int
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RSVP HTTP server",
		Long: `Start the RSVP HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (overlaid by --config if provided)
- Apply pending database migrations
- Start background asset cleanup
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Run against an embedded SQLite file
  DATABASE_DRIVER=sqlite DATABASE_PATH=./rsvp.db server serve

  # Start with custom config file
  server serve --config /etc/togather/rsvp.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if serverHost != "" {
				cfg.Server.Host = serverHost
			}
			if serverPort != 0 {
				cfg.Server.Port = serverPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return serveCmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("starting RSVP server")

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	metrics.Init(Version, GitCommit, BuildDate, cfg.Database.Driver)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	store, err := assets.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, logger)
	if err != nil {
		return fmt.Errorf("uploads directory: %w", err)
	}

	b, err := openBackend(ctx, cfg, logger, store)
	if err != nil {
		return err
	}
	defer b.close()

	auditLogger := audit.NewLoggerWithZerolog(logger)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	health := handlers.NewHealthChecker(Version, GitCommit).AddCheck("database", b.ping)
	if b.jobsCheck != nil {
		health.AddOptionalCheck("job_queue", b.jobsCheck)
	}

	handler := api.NewRouter(api.Deps{
		Config:  cfg,
		Logger:  logger,
		Events:  events.NewService(b.events, b.assets, auditLogger, logger),
		Users:   users.NewService(b.users, tokens, auditLogger, cfg.Auth.BcryptCost, logger),
		Tokens:  tokens,
		Uploads: store.Handler(),
		Health:  health,
		Build: api.BuildInfo{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			Driver:    b.driver,
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       30 * time.Second, // image uploads
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gracefulShutdown(gctx, server, logger)
	})
	return g.Wait()
}

// backend is the storage driver plus the background work that goes with it.
type backend struct {
	driver    string
	events    events.Repository
	users     users.Repository
	assets    events.AssetStore
	ping      handlers.CheckFunc
	jobsCheck handlers.CheckFunc
	run       func(ctx context.Context) error
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger, store *assets.LocalStore) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger, store)
	case config.DriverSQLite:
		return openSQLite(cfg, logger, store)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config, logger zerolog.Logger, store *assets.LocalStore) (*backend, error) {
	if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := postgres.OpenPool(poolCtx, cfg.Database)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	repo, err := postgres.NewRepository(pool, postgres.WithQueryTimeout(cfg.Database.QueryTimeout))
	if err != nil {
		pool.Close()
		return nil, err
	}

	eventsRepo := repo.Events()
	b := &backend{
		driver: repo.Driver(),
		events: eventsRepo,
		users:  repo.Users(),
		assets: store,
		ping:   repo.Ping,
		close:  repo.Close,
	}
	collector := metrics.NewDBCollector(pool)

	if !cfg.Jobs.Enabled {
		logger.Warn().Msg("background jobs disabled, failed image removals will not be retried")
		b.run = collectMetrics(collector)
		return b, nil
	}

	if err := jobs.Migrate(ctx, pool); err != nil {
		repo.Close()
		return nil, err
	}

	jobLogger := newJobLogger(cfg.Logging)
	sweeper := &jobs.Sweeper{
		Store:       store,
		Events:      eventsRepo,
		GracePeriod: cfg.Jobs.OrphanGracePeriod,
		Logger:      jobLogger,
	}
	client, err := jobs.NewClient(pool, jobs.ClientOptions{
		Workers:       jobs.NewWorkers(store, sweeper, jobLogger),
		Logger:        jobLogger,
		Hooks:         []rivertype.Hook{metrics.NewRiverMetricsHook()},
		SweepInterval: cfg.Jobs.OrphanSweepInterval,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("river client: %w", err)
	}

	b.assets = jobs.NewQueuedAssetStore(store, client, jobLogger)
	b.jobsCheck = func(ctx context.Context) error {
		_, err := client.JobList(ctx, river.NewJobListParams().First(1))
		return err
	}
	b.run = func(ctx context.Context) error {
		go collector.Start(ctx, dbCollectInterval)

		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Msg("river background job workers started")

		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("river workers shutdown error")
			return nil
		}
		logger.Info().Msg("river workers stopped")
		return nil
	}
	return b, nil
}

func openSQLite(cfg config.Config, logger zerolog.Logger, store *assets.LocalStore) (*backend, error) {
	if err := sqlite.MigrateUp(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}
	repo, err := sqlite.NewRepository(db, sqlite.WithQueryTimeout(cfg.Database.QueryTimeout))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	eventsRepo := repo.Events()
	collect := collectMetrics(metrics.NewSQLDBCollector(db))
	b := &backend{
		driver: repo.Driver(),
		events: eventsRepo,
		users:  repo.Users(),
		assets: store,
		ping:   repo.Ping,
		run:    collect,
		close: func() {
			if err := repo.Close(); err != nil {
				logger.Error().Err(err).Msg("closing database")
			}
		},
	}

	// No job queue on SQLite: the orphan sweep runs on a ticker instead.
	if cfg.Jobs.Enabled && cfg.Jobs.OrphanSweepInterval > 0 {
		sweeper := &jobs.Sweeper{
			Store:       store,
			Events:      eventsRepo,
			GracePeriod: cfg.Jobs.OrphanGracePeriod,
			Logger:      newJobLogger(cfg.Logging),
		}
		b.run = func(ctx context.Context) error {
			go sweeper.Run(ctx, cfg.Jobs.OrphanSweepInterval)
			return collect(ctx)
		}
	}
	return b, nil
}

func collectMetrics(collector *metrics.DBCollector) func(context.Context) error {
	return func(ctx context.Context) error {
		collector.Start(ctx, dbCollectInterval)
		return nil
	}
}

// newJobLogger returns the slog logger River and the job workers write to.
func newJobLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "console") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)).With("component", "jobs")
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("component", "jobs")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// gracefulShutdown waits for ctx to end, then drains in-flight requests.
func gracefulShutdown(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
