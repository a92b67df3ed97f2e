// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bissquit/promo-garden/internal/affiliate"
	"github.com/bissquit/promo-garden/internal/api"
	"github.com/bissquit/promo-garden/internal/config"
	"github.com/bissquit/promo-garden/internal/coupons"
	couponspostgres "github.com/bissquit/promo-garden/internal/coupons/postgres"
	dealspostgres "github.com/bissquit/promo-garden/internal/deals/postgres"
	"github.com/bissquit/promo-garden/internal/fetch"
	"github.com/bissquit/promo-garden/internal/ledger"
	ledgerpostgres "github.com/bissquit/promo-garden/internal/ledger/postgres"
	"github.com/bissquit/promo-garden/internal/notify"
	"github.com/bissquit/promo-garden/internal/notify/telegram"
	"github.com/bissquit/promo-garden/internal/notify/whatsapp"
	"github.com/bissquit/promo-garden/internal/pipeline"
	"github.com/bissquit/promo-garden/internal/pkg/ctxlog"
	"github.com/bissquit/promo-garden/internal/pkg/httputil"
	"github.com/bissquit/promo-garden/internal/pkg/metrics"
	"github.com/bissquit/promo-garden/internal/pkg/postgres"
	"github.com/bissquit/promo-garden/internal/routing"
	"github.com/bissquit/promo-garden/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	loop          *pipeline.Loop
	ledgerWorker  *ledger.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if !cfg.Database.SkipMigrations {
		if err := applyMigrations(cfg.Database); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    int(cfg.Database.MaxConns),
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setup()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup: %w", err)
	}

	app.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the background workers and HTTP servers. It blocks until
// the main server stops.
func (a *App) Run(ctx context.Context) error {
	a.loop.Start(ctx)
	if a.ledgerWorker != nil {
		a.ledgerWorker.Start(ctx)
	}

	go func() {
		a.logger.Info("starting metrics server", "addr", a.config.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server", "addr", a.config.Server.Addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()
	a.loop.Stop()
	if a.ledgerWorker != nil {
		a.ledgerWorker.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setup() (*chi.Mux, error) {
	cfg := a.config

	dealsRepo := dealspostgres.NewRepository(a.db)
	couponsRepo := couponspostgres.NewRepository(a.db)
	couponService := coupons.NewService(couponsRepo, cfg.Coupons)
	linkBuilder := affiliate.NewBuilder(cfg.Affiliate)
	router := routing.NewRouter(cfg.Routing.ConfigPath, cfg.Routing.Defaults)

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	telegramSender, err := telegram.NewSender(cfg.Telegram)
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if !cfg.Telegram.Enabled {
		slog.Warn("telegram sender is disabled: deals will not reach telegram chats")
	}

	whatsappSender, err := whatsapp.NewSender(cfg.Whatsapp)
	if err != nil {
		return nil, fmt.Errorf("create whatsapp sender: %w", err)
	}
	if !cfg.Whatsapp.Enabled {
		slog.Warn("whatsapp sender is disabled: deals will not reach whatsapp groups")
	}

	dispatcher := notify.NewDispatcher(renderer, telegramSender, whatsappSender)

	fetcher := fetch.NewHTTPFetcher(cfg.Fetch)
	processor := pipeline.NewProcessor(dealsRepo, linkBuilder, couponService, router, dispatcher)
	runner := pipeline.NewRunner(cfg.Pipeline, fetcher, processor)
	scheduler := pipeline.NewScheduler(cfg.Scheduler.StatePath)
	a.loop = pipeline.NewLoop(scheduler, runner, dispatcher, router)

	var runs api.RunLister
	if cfg.Ledger.Enabled {
		ledgerRepo := ledgerpostgres.NewRepository(a.db)
		a.ledgerWorker = ledger.NewWorker(cfg.Ledger.Worker, ledgerRepo, fetcher)
		runs = ledgerRepo
	} else {
		slog.Info("scrape ledger is disabled")
	}

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	handler := api.NewHandler(dealsRepo, scheduler, router, runs)
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func applyMigrations(cfg config.DatabaseConfig) error {
	migrator, err := migrate.New("file://"+cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
