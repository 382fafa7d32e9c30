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
	"github.com/ujenga-aus/JengaIQ-sub003/internal/watch"
)

const version = "1.0.0"

var (
	configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML configuration file")
	rescanOnly = flag.Bool("rescan", false, "Run a single rescan sweep and exit")
)

func main() {
	flag.Parse()

	log.Printf("Starting Schedule Import Watcher v%s", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	location, err := time.LoadLocation(cfg.Watch.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Watch.Timezone, err)
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

	dlqManager := dlq.NewManager(dlq.NewMemoryQueue(), 10)
	dlqManager.OnEntryAdded(func(entry *dlq.Entry) {
		logger.WithFields(logrus.Fields{
			"import_id": entry.ImportID,
			"stage":     entry.FailureStage,
			"attempts":  entry.Attempts,
		}).Warn("Import moved to dead letter queue")
	})

	svc := importer.NewService(importRepo, scheduleRepo, dlqManager, logger, nil)

	// Dropped files are handed to workers over NATS when available and
	// processed inline otherwise.
	var enq watch.Enqueuer
	enqueuer, err := queue.NewEnqueuer(cfg.NATS.URL, logger)
	if err != nil {
		log.Printf("Warning: NATS connection failed, dropped files will be processed inline: %v", err)
	} else {
		log.Println("NATS connection established")
		enq = enqueuer
	}

	watchSvc := watch.NewService(watch.ServiceConfig{
		Root:       cfg.Watch.Root,
		ArchiveDir: cfg.Watch.ArchiveDir,
		MaxAgeDays: cfg.Retain.MaxAgeDays,
	}, svc, enq, importRepo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.Watch.Root, 0o755); err != nil {
		log.Fatalf("Failed to create drop root %s: %v", cfg.Watch.Root, err)
	}
	if err := os.MkdirAll(cfg.Watch.ArchiveDir, 0o755); err != nil {
		log.Fatalf("Failed to create archive directory %s: %v", cfg.Watch.ArchiveDir, err)
	}

	if *rescanOnly {
		if err := watchSvc.Rescan(ctx); err != nil {
			log.Fatalf("Rescan failed: %v", err)
		}
		log.Println("Rescan complete")
		return
	}

	watcher, err := watch.NewWatcher(cfg.Watch.Root, time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond, watchSvc, logger)
	if err != nil {
		log.Fatalf("Failed to create file watcher: %v", err)
	}

	// Periodic jobs: a rescan sweep for files that landed while the
	// watcher was down, and a retention purge of old imports.
	scheduler := watch.NewScheduler(location)
	if err := scheduler.AddJob("rescan", cfg.Watch.RescanSchedule, func() {
		if err := watchSvc.Rescan(ctx); err != nil {
			logger.WithError(err).Error("Scheduled rescan failed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule rescan job: %v", err)
	}
	if cfg.Retain.MaxAgeDays > 0 {
		if err := scheduler.AddJob("purge", cfg.Retain.PurgeSchedule, func() {
			if err := watchSvc.Purge(ctx); err != nil {
				logger.WithError(err).Error("Scheduled purge failed")
			}
		}); err != nil {
			log.Fatalf("Failed to schedule purge job: %v", err)
		}
	}
	scheduler.Start()

	// Sweep once on startup to pick up files dropped while down.
	if err := watchSvc.Rescan(ctx); err != nil {
		logger.WithError(err).Error("Startup rescan failed")
	}

	go watcher.Run(ctx)

	log.Printf("Watching %s (archive: %s)", cfg.Watch.Root, cfg.Watch.ArchiveDir)
	log.Printf("Rescan schedule: %s", cfg.Watch.RescanSchedule)
	if cfg.Retain.MaxAgeDays > 0 {
		log.Printf("Retention: %d days, purge schedule: %s", cfg.Retain.MaxAgeDays, cfg.Retain.PurgeSchedule)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	cancel()
	scheduler.Stop()
	if err := watcher.Close(); err != nil {
		log.Printf("Error closing watcher: %v", err)
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

	log.Println("Watcher stopped gracefully")
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
