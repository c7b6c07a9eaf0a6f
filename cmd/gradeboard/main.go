// Command gradeboard serves normalized grading results over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	grader "github.com/okian/gradeboard/internal/adapters/grader"
	"github.com/okian/gradeboard/internal/adapters/http/api"
	"github.com/okian/gradeboard/internal/adapters/http/site"
	"github.com/okian/gradeboard/internal/adapters/http/swagger"
	repository "github.com/okian/gradeboard/internal/adapters/repository"
	app "github.com/okian/gradeboard/internal/app"
	"github.com/okian/gradeboard/internal/config"
	"github.com/okian/gradeboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 70 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString("gradeboard: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService wires the cache store and the grading backend into the service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	cache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithCache(cache),
	}

	backend, err := newBackend(cfg)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	// Only pass a non-nil client; a typed nil would defeat the cache-only mode.
	if backend != nil {
		opts = append(opts, app.WithSource(backend), app.WithStudents(backend))
	}
	return app.New(opts...), nil
}

// openCache opens the configured cache store.
func openCache(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var driver repository.Driver
	switch cfg.CacheDriver {
	case config.CacheSQLite:
		driver = repository.DriverSQLite
	case config.CachePostgres:
		driver = repository.DriverPostgres
	default:
		return repository.NewMemoryStore(ctx), nil
	}
	store, err := repository.OpenSQLStore(ctx, driver, cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.CacheDriver, err)
	}
	return store, nil
}

// newBackend returns nil when no grading backend is configured.
func newBackend(cfg *config.Config) (*grader.Client, error) {
	if cfg.GraderURL == "" {
		return nil, nil
	}
	c, err := grader.New(cfg.GraderURL, grader.WithTimeout(cfg.GraderTimeout()))
	if err != nil {
		return nil, fmt.Errorf("grading backend: %w", err)
	}
	return c, nil
}

// newRouter mounts the business API, the docs and the landing page on one router.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) chi.Router {
	server := api.NewServer(svc, svc,
		api.WithIngestSecret(cfg.IngestSecret),
		api.WithCORSOrigins(cfg.Origins()),
		api.WithMaxResultBytes(cfg.MaxResultBytes),
		api.WithLogger(log.Named("api")),
	)
	r := server.Router(ctx)
	swagger.Register(ctx, r)
	site.Register(ctx, r)
	return r
}

// startServiceMetricsUpdater refreshes the service gauges periodically.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the queue and cache gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
