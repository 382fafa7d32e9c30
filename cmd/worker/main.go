package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/circuitbreaker"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/config"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/dlq"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/importer"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/queue"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
)

const version = "1.1.0"

var (
	configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML configuration file")
	jobTimeout = flag.Duration("job-timeout", 4*time.Minute, "Timeout for a single import run")
)

func main() {
	flag.Parse()

	log.Printf("Starting Schedule Import Worker v%s", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database connection established")

	// Initialize Redis
	redisClient := initRedis(cfg)
	if redisClient != nil {
		log.Println("Redis connection established")
	}

	// The worker drives every status transition of an import, so it
	// carries the same publisher chain as the server: history rows
	// always, Redis events behind a circuit breaker when available.
	publishers := []state.EventPublisher{state.NewHistoryPublisher(db.DB)}
	if redisClient != nil {
		breakerConfig := circuitbreaker.DefaultConfig()
		breakerConfig.OnStateChange = func(from, to circuitbreaker.State) {
			logger.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Event publisher circuit state changed")
		}
		publishers = append(publishers, state.NewGuardedPublisher(state.NewRedisPublisher(redisClient), breakerConfig))
	}
	stateManager := state.NewManager(state.NewMultiPublisher(publishers...))

	// Initialize repositories
	importRepo := storage.NewImportRepository(db.DB, stateManager)
	scheduleRepo := storage.NewScheduleRepository(db.DB)

	// Dead letter queue for imports that exhaust their retries
	dlqManager := dlq.NewManager(dlq.NewMemoryQueue(), 10)
	dlqManager.OnEntryAdded(func(entry *dlq.Entry) {
		logger.WithFields(logrus.Fields{
			"import_id": entry.ImportID,
			"stage":     entry.FailureStage,
			"attempts":  entry.Attempts,
		}).Warn("Import moved to dead letter queue")
	})
	dlqManager.OnThresholdReached(func(count int) {
		logger.WithField("count", count).Error("Dead letter queue threshold reached")
	})

	svc := importer.NewService(importRepo, scheduleRepo, dlqManager, logger, nil)

	queueConfig := queue.DefaultConfig()
	queueConfig.JobTimeout = *jobTimeout
	if queueConfig.JobTimeout >= queueConfig.AckWait {
		// A job that outlives the ack window gets redelivered while
		// still running; keep a minute of headroom.
		queueConfig.AckWait = queueConfig.JobTimeout + time.Minute
	}
	// Jobs whose import row is gone or permanently out of reach can
	// never succeed on redelivery; drop them instead of requeueing.
	queueConfig.DropIf = func(err error) bool {
		return !importer.IsTransient(err)
	}

	worker, err := queue.NewWorker(cfg.NATS.URL, svc, logger, queueConfig)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}

	// Setup context and signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start the worker
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Printf("Worker %s started and ready to process imports", worker.GetID())
	log.Printf("NATS URL: %s", cfg.NATS.URL)
	log.Printf("Job timeout: %v", queueConfig.JobTimeout)

	// Wait for shutdown signal
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	// Stop the worker gracefully, draining in-flight imports
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), queueConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := worker.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}
	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Worker stopped successfully")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

func initDatabase(cfg *config.Config) (*storage.DB, error) {
	dbConfig := storage.DefaultConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.DBName = cfg.Database.Name
	dbConfig.SSLMode = cfg.Database.SSLMode

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := storage.RunMigrations(dbConfig, cfg.Database.MigrationsDir); err != nil {
		log.Printf("Warning: Failed to run migrations (migrations directory may not exist): %v", err)
	}

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed, transition events disabled: %v", err)
		return nil
	}

	return client
}
