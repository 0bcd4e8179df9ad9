package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keymint/internal/apikey/handler"
	apikeymetrics "keymint/internal/apikey/metrics"
	"keymint/internal/apikey/service"
	"keymint/internal/apikey/store"
	"keymint/internal/platform/config"
	"keymint/internal/platform/database"
	"keymint/internal/platform/health"
	"keymint/internal/platform/httpserver"
	"keymint/internal/platform/logger"
	"keymint/migrations"
	request "keymint/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/apikey.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing keymint", "addr", cfg.Addr)

	healthHandler := health.New()

	var keyStore service.Store
	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.Migrate(migrateCtx, migrations.FS); err != nil {
			cancel()
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}
		cancel()

		keyStore = store.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
			defer cancel()
			return pool.Health(ctx)
		})
		defer pool.Close() //nolint:errcheck // process exit path
		log.Info("using postgres api key store")
	} else {
		keyStore = store.NewInMemory()
		log.Warn("no database configured, using in-memory api key store")
	}

	svc := service.New(keyStore,
		service.WithLogger(log),
		service.WithMetrics(apikeymetrics.New()),
		service.WithMaxConcurrentCompares(cfg.MaxConcurrentCompares),
	)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.ContentTypeJSON)

	handler.New(svc, log).Register(r)
	healthHandler.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
