package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/cache"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/cloudsync"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/config"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/database"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/queue"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/storage"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
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

	closer, err := tracing.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint, cfg.Tracing.SamplingRate)
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
	repo := database.NewRepository(db)

	// Initialize cache for the sweep lock
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer redisCache.Close()

	// Initialize storage
	stor, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.WithError(err).Fatal("Failed to setup DLQ")
	}

	monitor := monitoring.NewMonitor(q, 0, logger)
	monitor.Start(ctx)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	uploader := cloudsync.NewUploader(stor, logger)
	handler := func(ctx context.Context, job *models.SyncJob) error {
		done := metrics.TrackSyncJob()
		defer done()

		err := uploader.HandleJob(ctx, job)
		monitor.RecordJob(err)
		if err != nil {
			logger.WithJobID(job.ID).WithError(err).Errorf("Sync of recording %s failed", job.Recording.ID)
		}
		return err
	}

	if err := q.ConsumeSyncJobs(ctx, handler); err != nil {
		logger.WithError(err).Fatal("Failed to consume sync jobs")
	}

	if cfg.CloudSync.RetentionInterval > 0 {
		sweeper := cloudsync.NewSweeper(repo, stor, redisCache, logger)
		go sweeper.Run(ctx, cfg.CloudSync.RetentionInterval, monitor.RecordSweep)
	}

	logger.Info("Worker started, waiting for sync jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker gracefully...")
	cancel()
	logger.Info("Worker stopped")
}
