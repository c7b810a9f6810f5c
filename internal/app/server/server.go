package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"intranet/internal/domain/approval"
	"intranet/internal/domain/directory"
	"intranet/internal/domain/leave"
	"intranet/internal/domain/notifications"
	"intranet/internal/platform/config"
	"intranet/internal/platform/db"
	"intranet/internal/platform/email"
	"intranet/internal/platform/jobs"
	"intranet/internal/platform/logging"
	"intranet/internal/platform/metrics"
	"intranet/internal/platform/tracing"
	"intranet/internal/store/postgres"
	"intranet/internal/store/sqlite"
	"intranet/internal/transport/http/api"
	approvalhandler "intranet/internal/transport/http/handlers/approval"
	leavehandler "intranet/internal/transport/http/handlers/leave"
	notificationshandler "intranet/internal/transport/http/handlers/notifications"
	"intranet/internal/transport/http/middleware"
)

const serviceVersion = "1.0.0"

// Backend is everything the services need from a store. Both the postgres and
// the sqlite store satisfy it.
type Backend interface {
	approval.StoreAPI
	leave.StoreAPI
	directory.StoreAPI
	notifications.StoreAPI
	jobs.RunStore
	middleware.IdempotencyStore
	Ping(ctx context.Context) error
}

type App struct {
	Config  config.Config
	Store   Backend
	Metrics *metrics.Collector
	Jobs    *jobs.Service
	Router  http.Handler

	closers []func()
}

func Run() {
	cfg := config.Load()
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		output := cfg.TracingOutput
		if output == "stdout" {
			output = ""
		}
		if err := tracing.Init("intranet", serviceVersion, output); err != nil {
			slog.Error("tracing init failed", "err", err)
			os.Exit(1)
		}
	}

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("intranet server listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "err", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown failed", "err", err)
	}
}

// New opens the configured store, seeds the directory and assembles the
// services and the router. Jobs are built but not started.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	users := directory.NewService(store)
	if cfg.SeedFile != "" {
		n, err := db.Seed(ctx, users, cfg.SeedFile)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("seed directory: %w", err)
		}
		slog.Info("directory seeded", "users", n, "file", cfg.SeedFile)
	}

	ledger := leave.NewService(store, users)

	notifier := notifications.New(store, users, email.New(cfg))
	notifier.DefaultFrom = cfg.EmailFrom

	workflow := approval.NewService(store, users, approval.NewDispatcher(ledger, app.Metrics))
	workflow.Notifier = notifier
	workflow.Metrics = app.Metrics

	app.Jobs = jobs.New(store, ledger, notifier, cfg)
	app.Jobs.Purger = notifier
	app.Router = app.routes(workflow, ledger, notifier)
	return app, nil
}

func (a *App) openStore(ctx context.Context) (Backend, error) {
	switch a.Config.StoreDriver {
	case config.DriverSQLite:
		store, err := sqlite.New(a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, a.Config)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if a.Config.RunMigrations {
			if err := db.Migrate(ctx, pool, a.Config.MigrationsDir); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
}

func (a *App) routes(workflow *approval.Service, ledger *leave.Service, notifier *notifications.Service) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		documents := approvalhandler.NewHandler(workflow)
		documents.Idempotency = a.Store
		documents.RegisterRoutes(r)
		leavehandler.NewHandler(ledger, a.Jobs).RegisterRoutes(r)
		notificationshandler.NewHandler(notifier).RegisterRoutes(r)
	})

	return router
}

// Close releases the store. It is safe to call on a partially built App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
