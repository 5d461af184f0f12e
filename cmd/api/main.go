package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/ai"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/auth"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/cache"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/cloudsync"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/config"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/database"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/profile"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/queue"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/webhook"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	closer, err := tracing.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SamplingRate)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply schema")
	}
	repo := database.NewRepository(db)

	// Initialize cache
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer redisCache.Close()

	// Initialize webhooks
	notifier := webhook.NewService(cfg.Webhooks.Endpoints, cfg.Webhooks.Timeout, logger)
	defer notifier.Close()

	profiles := profile.NewService(repo, redisCache, notifier, profile.Options{
		DefaultCredits:   cfg.Profile.DefaultCredits,
		CacheTTL:         cfg.Profile.CacheTTL,
		GiftCodeAttempts: cfg.RateLimit.GiftCodeAttempts,
		GiftCodeWindow:   cfg.RateLimit.GiftCodeWindow,
	}, logger)

	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	api := &API{
		auth:     auth.NewService(repo, tokens, logger),
		profiles: profiles,
		ai:       ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, logger),
		tokens:   tokens,
		logger:   logger,
		checks: map[string]HealthCheck{
			"database": db.Health,
			"redis":    redisCache.Ping,
		},
	}

	// Cloud sync is optional; the API still serves everything else without it
	if cfg.CloudSync.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to queue")
		}
		defer q.Close()

		if err := q.SetupDeadLetterQueue(); err != nil {
			logger.WithError(err).Warn("Failed to setup DLQ")
		}
		api.sync = cloudsync.NewService(q, logger)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst)
	go rateLimiter.Cleanup(ctx)

	router := setupRouter(api, rateLimiter, cfg.Server.AllowedOrigins)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatalf("Failed to start server on %s", addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
