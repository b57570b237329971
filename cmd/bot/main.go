package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mskaar/rain-alert-bot/internal/cache"
	"github.com/mskaar/rain-alert-bot/internal/circuitbreaker"
	"github.com/mskaar/rain-alert-bot/internal/client"
	"github.com/mskaar/rain-alert-bot/internal/config"
	httphandler "github.com/mskaar/rain-alert-bot/internal/http"
	"github.com/mskaar/rain-alert-bot/internal/notify"
	"github.com/mskaar/rain-alert-bot/internal/observability"
	"github.com/mskaar/rain-alert-bot/internal/scheduler"
	"github.com/mskaar/rain-alert-bot/internal/service"
	"github.com/mskaar/rain-alert-bot/internal/timeutil"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	notifyAt, err := timeutil.ParseDailyTimeOfDay(cfg.NotifyTime, cfg.Location)
	if err != nil {
		logger.Fatal("notify time", zap.Error(err))
	}

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.BreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Cooldown:         cfg.BreakerCooldown,
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("forecast api circuit transition",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("cooldown", cfg.BreakerCooldown))
	}

	var documentCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheRetention)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		documentCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		documentCache = cache.NewInMemoryCache(cfg.CacheRetention)
		logger.Info("cache backend: in_memory")
	}

	forecastClient, err := client.NewLocationforecastClient(
		cfg.ForecastAPIURL,
		cfg.UserAgent,
		cfg.ForecastTimeout,
		client.Options{
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
			Limiter:        rate.NewLimiter(rate.Limit(cfg.UpstreamRateLimitPerSec), cfg.UpstreamRateLimitBurst),
			Breaker:        breaker,
			Cache:          documentCache,
			StaleMaxAge:    cfg.CacheStaleMaxAge,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}

	alertService := service.NewAlertService(forecastClient, cfg.Coordinates, cfg.Location, cfg.Policy, nil, logger)

	notifier, err := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookUsername, cfg.WebhookTimeout, logger)
	if err != nil {
		logger.Fatal("webhook notifier", zap.Error(err))
	}

	sched := scheduler.New(alertService, notifier, notifyAt, cfg.CycleTimeout, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	logger.Info("daily rain check scheduled",
		zap.String("at", notifyAt.String()),
		zap.String("timezone", cfg.TimeZoneName),
		zap.String("coordinates", cfg.Coordinates.Key()),
		zap.String("policy", cfg.Policy.String()))

	var cachePing func() error
	if memcacheCloser != nil {
		cachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(sched, breaker, cachePing, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/healthz", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/check", handler.PostCheck).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.OpsPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ops server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
