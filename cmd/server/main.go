package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/circuitbreaker"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/config"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/dlq"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/importer"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/queue"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/handlers"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
)

const version = "1.2.0"

var configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML configuration file")

func main() {
	flag.Parse()

	log.Printf("Starting Schedule Import API Server v%s", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

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

	// Status transitions always land in import_history; with Redis up
	// they are also published on the events channel behind a circuit
	// breaker so a struggling broker cannot stall imports.
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

	healthChecks := map[string]handlers.CheckFunc{
		"database": db.Health,
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	tracker := state.NewHistoryTracker(db.DB)
	deps := api.Deps{
		Imports:   importRepo,
		Schedules: scheduleRepo,
		Service:   svc,
		History:   tracker,
		Activity:  tracker,
		Logger:    logger,
	}
	if redisClient != nil {
		deps.Events = state.NewRedisPublisher(redisClient)
	}

	// Without NATS the server still works; accepted imports are then
	// processed inline instead of being handed to workers.
	enqueuer, err := queue.NewEnqueuer(cfg.NATS.URL, logger)
	if err != nil {
		log.Printf("Warning: NATS connection failed, imports will be processed inline: %v", err)
	} else {
		log.Println("NATS connection established")
		deps.Enqueuer = enqueuer
		healthChecks["nats"] = func(ctx context.Context) error {
			if !enqueuer.Healthy() {
				return fmt.Errorf("nats connection lost")
			}
			return nil
		}
		if err := enqueuer.SubscribeResults("api-server", func(result *queue.ImportResultMessage) {
			logger.WithFields(logrus.Fields{
				"import_id":      result.ImportID,
				"program_id":     result.ProgramID,
				"worker_id":      result.WorkerID,
				"status":         result.Status,
				"task_count":     result.TaskCount,
				"critical_count": result.CriticalCount,
			}).Info("Import finished")
		}); err != nil {
			log.Printf("Warning: Failed to subscribe to import results: %v", err)
		}
	}

	var auth *middleware.JWTConfig
	if cfg.Auth.Enabled() {
		auth = middleware.NewJWTConfig(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHrs)*time.Hour)
		log.Println("JWT authentication enabled")
	}

	var uploadLimiter *middleware.RateLimiter
	if cfg.Server.UploadRatePerMin > 0 {
		uploadLimiter = middleware.NewRateLimiter(cfg.Server.UploadRatePerMin, 0)
	}

	router := api.NewRouter(deps, api.Options{
		Version:        version,
		Auth:           auth,
		UploadLimiter:  uploadLimiter,
		MaxUploadBytes: cfg.Server.MaxUploadSizeBytes,
		HealthChecks:   healthChecks,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if uploadLimiter != nil {
		uploadLimiter.Stop()
	}
	if enqueuer != nil {
		enqueuer.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server stopped gracefully")
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
	dbConfig := storageConfig(cfg)

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := storage.RunMigrations(dbConfig, cfg.Database.MigrationsDir); err != nil {
		log.Printf("Warning: Failed to run migrations (migrations directory may not exist): %v", err)
	}

	return db, nil
}

func storageConfig(cfg *config.Config) *storage.Config {
	dbConfig := storage.DefaultConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.DBName = cfg.Database.Name
	dbConfig.SSLMode = cfg.Database.SSLMode
	return dbConfig
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
