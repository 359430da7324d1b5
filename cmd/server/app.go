package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/stackmesh/commerce-api/internal/config"
	"github.com/stackmesh/commerce-api/internal/platform/cache"
	"github.com/stackmesh/commerce-api/internal/platform/metrics"
	"github.com/stackmesh/commerce-api/internal/platform/postgres"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/service/auth"
	"github.com/stackmesh/commerce-api/internal/task"
	"github.com/stackmesh/commerce-api/internal/worker"
)

// application holds the assembled dependency graph.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	redis   *redis.Client
	cache   *cache.Cache
	metrics *metrics.Metrics

	userService    *service.UserService
	productService *service.ProductService
	orderService   *service.OrderService
	reportService  *service.ReportService

	jwtService auth.JWTService
	runner     *task.Runner
	dispatcher *task.Dispatcher
	pool       *worker.Pool
	scheduler  *cron.Cron
}

// newApplication builds the full dependency graph: database, redis,
// migrations, stores, services, task runner, compute pool and scheduler.
func newApplication(cfg *config.Config, log *slog.Logger) (*application, error) {
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(ctx, db, log); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	appCache := cache.New(redisClient, "commerce")
	if err := appCache.Ping(ctx); err != nil {
		// Redis being down degrades caching and rate limiting but must
		// not stop the API from serving.
		log.Warn("redis unreachable at startup, continuing degraded", "error", err)
	}

	m := metrics.New()

	userStore := postgres.NewUserStore(db, log)
	productStore := postgres.NewProductStore(db, log)
	orderStore := postgres.NewOrderStore(db, log)
	taskStore := postgres.NewTaskStore(db, log)

	jwtService, err := auth.NewJWTService(auth.Config{
		Secret:               cfg.Auth.JWTSecret,
		TokenLifetime:        time.Duration(cfg.Auth.TokenLifetimeMinutes) * time.Minute,
		RefreshTokenLifetime: time.Duration(cfg.Auth.RefreshTokenLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	mailer := &task.LogMailer{Logger: log}
	definitions := []task.Definition{
		task.NewWelcomeEmailDefinition(mailer),
		task.NewOrderConfirmationDefinition(mailer),
		task.NewInvoiceDefinition(cfg.Task.SpoolDir),
	}
	runner := task.NewRunner(taskStore, definitions, task.RunnerConfig{
		WorkerCount:  cfg.Task.WorkerCount,
		QueueSize:    cfg.Task.QueueSize,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, log)
	runner.SetObserver(m.ObserveTask)
	dispatcher := task.NewDispatcher(taskStore, runner, log)

	policy := service.ListingPolicy{
		MaxPageSize:   cfg.Server.MaxPageSize,
		StrictFilters: cfg.Server.StrictFilters,
	}

	pool := worker.New(cfg.Worker.PoolSize, cfg.Worker.PoolSize*4, log)

	app := &application{
		config:     cfg,
		logger:     log,
		db:         db,
		redis:      redisClient,
		cache:      appCache,
		metrics:    m,
		jwtService: jwtService,
		runner:     runner,
		dispatcher: dispatcher,
		pool:       pool,
	}

	app.userService = service.NewUserService(
		db, userStore, hasher, hasher, jwtService, dispatcher, policy, log)
	app.productService = service.NewProductService(
		db, productStore, appCache,
		time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, policy, log)
	app.orderService = service.NewOrderService(
		db, orderStore, productStore, userStore, dispatcher, policy, log)
	app.reportService = service.NewReportService(
		pool, orderStore, productStore, userStore, log)

	app.scheduler = app.newScheduler()

	return app, nil
}

// run starts the background machinery and the HTTP server, then blocks
// until a shutdown signal arrives.
func (app *application) run() error {
	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	app.scheduler.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		app.logger.Error("server failed", "error", err)
		app.cleanup()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
	}

	app.cleanup()
	app.logger.Info("server shutdown completed")
	return nil
}

// cleanup stops background components and closes connections, in the
// reverse order of startup.
func (app *application) cleanup() {
	app.scheduler.Stop()
	app.runner.Stop()
	app.pool.Shutdown()

	if err := app.redis.Close(); err != nil {
		app.logger.Warn("failed to close redis client", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn("failed to close database", "error", err)
	}
}
