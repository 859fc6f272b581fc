// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/bookshelf-crawler/internal/api"
	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/clock/system"
	"github.com/JakeFAU/bookshelf-crawler/internal/config"
	"github.com/JakeFAU/bookshelf-crawler/internal/crawler"
	"github.com/JakeFAU/bookshelf-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/bookshelf-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/bookshelf-crawler/internal/id/uuid"
	"github.com/JakeFAU/bookshelf-crawler/internal/logging"
	"github.com/JakeFAU/bookshelf-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/bookshelf-crawler/internal/progress/sinks"
	"github.com/JakeFAU/bookshelf-crawler/internal/runlock"
	"github.com/JakeFAU/bookshelf-crawler/internal/scheduler"
	memorystore "github.com/JakeFAU/bookshelf-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/bookshelf-crawler/internal/storage/postgres"
)

const (
	shutdownTimeout  = 10 * time.Second
	redisPingTimeout = 5 * time.Second
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     catalog.BookStore
	redis     *redis.Client
	hub       *progress.Hub
	service   *crawler.Service
	scheduler *scheduler.Scheduler
	apiServer *api.Server

	closeOnce sync.Once
}

// NewApp creates an empty App for cfg.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	type sanitizedConfig struct {
		ServerPort  int    `json:"server_port"`
		StoreDriver string `json:"store_driver"`
		RootURL     string `json:"root_url"`
		Schedule    bool   `json:"schedule_enabled"`
		RedisLock   bool   `json:"redis_lock"`
	}
	logger.Info("Creating application", zap.Any("config", sanitizedConfig{
		ServerPort:  cfg.Server.Port,
		StoreDriver: cfg.Store.Driver,
		RootURL:     cfg.Crawler.RootURL,
		Schedule:    cfg.Schedule.Enabled,
		RedisLock:   cfg.Lock.RedisURL != "",
	}))
	return &App{cfg: cfg, logger: logger}, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger, prometheus.DefaultRegisterer)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	app.logger.Info("building application dependencies")

	clock := system.New()
	ids := uuid.New()

	if err := app.setupStore(ctx, clock, ids); err != nil {
		return nil, app.abort(err)
	}
	locker, err := app.setupLocker(ctx, ids)
	if err != nil {
		return nil, app.abort(err)
	}
	if err := app.setupProgress(reg); err != nil {
		return nil, app.abort(err)
	}
	app.setupCrawler(clock, ids, locker)
	if err := app.setupScheduler(); err != nil {
		return nil, app.abort(err)
	}

	app.apiServer = api.NewServer(app.store, app.service, clock, cfg.Server, logger.Named("api"))
	return app, nil
}

func (a *App) setupStore(ctx context.Context, clock catalog.Clock, ids catalog.IDGenerator) error {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory book store, records are lost on exit")
		a.store = memorystore.NewBookStore(clock, ids)
	case config.DriverPostgres:
		store, err := pgstore.NewBookStore(ctx, pgstore.Config{
			DSN:      a.cfg.Store.DSN,
			Table:    a.cfg.Store.Table,
			MaxConns: a.cfg.Store.MaxConns,
			Migrate:  a.cfg.Store.Migrate,
		}, clock, ids)
		if err != nil {
			return fmt.Errorf("book store init failed: %w", err)
		}
		a.store = store
		a.logger.Info("postgres book store initialized",
			zap.String("table", a.cfg.Store.Table),
			zap.Bool("migrate", a.cfg.Store.Migrate),
		)
	default:
		return fmt.Errorf("unknown store driver: %s", a.cfg.Store.Driver)
	}
	return nil
}

func (a *App) setupLocker(ctx context.Context, ids catalog.IDGenerator) (runlock.Locker, error) {
	if a.cfg.Lock.RedisURL == "" {
		a.logger.Info("using in-process run lock")
		return runlock.NewLocal(), nil
	}
	opts, err := redis.ParseURL(a.cfg.Lock.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	a.logger.Info("using redis run lock",
		zap.String("addr", opts.Addr),
		zap.String("key", a.cfg.Lock.Key),
		zap.Duration("ttl", a.cfg.Lock.TTL),
	)
	return runlock.NewRedis(a.redis, a.cfg.Lock.Key, a.cfg.Lock.TTL, ids), nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	hubCfg := progress.Config{Logger: a.logger.Named("progress_hub")}
	a.hub = progress.NewHub(hubCfg,
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
	)
	a.logger.Debug("progress hub initialized")
	return nil
}

func (a *App) setupCrawler(clock catalog.Clock, ids catalog.IDGenerator, locker runlock.Locker) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Crawler.UserAgent,
		Timeout:   a.cfg.HTTP.Timeout,
	})
	writer := crawler.NewWriter(a.store, a.cfg.Crawler.BatchSize, a.logger.Named("writer"))
	driver := crawler.NewDriver(
		crawler.Config{
			RootURL:      a.cfg.Crawler.RootURL,
			MaxPages:     a.cfg.Crawler.MaxPages,
			DetectCycles: a.cfg.Crawler.DetectCycles,
		},
		fetcher,
		extract.New(extract.DefaultSelectors()),
		writer,
		clock,
		ids,
		a.hub,
		a.logger.Named("crawler"),
	)
	a.service = crawler.NewService(driver, locker, a.cfg.Crawler.RunTimeout, a.logger.Named("service"))
	a.logger.Info("crawler configured",
		zap.String("root_url", a.cfg.Crawler.RootURL),
		zap.String("user_agent", a.cfg.Crawler.UserAgent),
		zap.Int("batch_size", a.cfg.Crawler.BatchSize),
		zap.Int("max_pages", a.cfg.Crawler.MaxPages),
		zap.Duration("run_timeout", a.cfg.Crawler.RunTimeout),
	)
}

func (a *App) setupScheduler() error {
	if !a.cfg.Schedule.Enabled {
		a.logger.Info("scheduled crawls disabled")
		return nil
	}
	sched, err := scheduler.New(scheduler.Config{
		Expression: a.cfg.Schedule.Expression,
		Timezone:   a.cfg.Schedule.Timezone,
	}, a.service, a.logger.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("scheduler init failed: %w", err)
	}
	a.scheduler = sched
	return nil
}

// abort releases whatever was built before err.
func (a *App) abort(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.closeInfrastructure(ctx)
	return err
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Crawl performs one crawl run outside the HTTP server.
func (a *App) Crawl(ctx context.Context) (crawler.Result, error) {
	res, err := a.service.RunOnce(ctx)
	if err != nil {
		return res, fmt.Errorf("crawl: %w", err)
	}
	return res, nil
}

// Run serves the API, and the schedule when enabled, until ctx is canceled
// or the process is signaled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		return err
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close gracefully shuts down the application. Calls after the first are
// no-ops.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { a.close(ctx) })
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop failed", zap.Error(err))
		}
	}
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
}
