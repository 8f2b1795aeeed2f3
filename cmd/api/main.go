package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dentaflow/clinic-platform/internal/api/router"
	"github.com/dentaflow/clinic-platform/internal/availability"
	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/internal/booking"
	appconfig "github.com/dentaflow/clinic-platform/internal/config"
	"github.com/dentaflow/clinic-platform/internal/http/handlers"
	"github.com/dentaflow/clinic-platform/internal/observability/metrics"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

func main() {
	// Load .env in development; a missing file is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"cache_backend", cfg.SlotCacheBackend,
	)

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	backendClient, err := backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
		TokenSource: func(ctx context.Context) (string, error) {
			return cfg.BackendBearerToken, nil
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	var slotCache availability.Cache
	if cfg.SlotCacheBackend == "redis" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		slotCache = availability.NewRedisCache(redisClient, cfg.SlotCacheTTL, logger)
	} else {
		slotCache = availability.NewMemoryCache(cfg.SlotCacheTTL)
	}

	availabilityCoordinator := availability.NewCoordinator(slotCache, backendClient, schedulingMetrics, logger)
	guard := booking.NewGuard(backendClient, logger)
	bookingCoordinator := booking.NewCoordinator(backendClient, guard, availabilityCoordinator, schedulingMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(availabilityCoordinator, cfg.DebounceDefault, logger),
		Appointments:       handlers.NewAppointmentsHandler(bookingCoordinator, guard, logger),
		SchedulingStats:    handlers.NewSchedulingStatsHandler(registry, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
