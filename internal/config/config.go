package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the full runtime configuration shared by the server, the
// worker and the watcher binaries. Values come from defaults, then an
// optional YAML file, then environment variables, in that order.
type Config struct {
	Env      string          `json:"env" yaml:"env"`
	Log      LogConfig       `json:"log" yaml:"log"`
	Server   ServerConfig    `json:"server" yaml:"server"`
	Database DatabaseConfig  `json:"database" yaml:"database"`
	Redis    RedisConfig     `json:"redis" yaml:"redis"`
	NATS     NATSConfig      `json:"nats" yaml:"nats"`
	Auth     AuthConfig      `json:"auth" yaml:"auth"`
	Watch    WatchConfig     `json:"watch" yaml:"watch"`
	Retain   RetentionConfig `json:"retention" yaml:"retention"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host               string `json:"host" yaml:"host"`
	Port               string `json:"port" yaml:"port" validate:"required"`
	UploadRatePerMin   int    `json:"upload_rate_per_min" yaml:"upload_rate_per_min"`
	MaxUploadSizeBytes int64  `json:"max_upload_size_bytes" yaml:"max_upload_size_bytes"`
}

// Addr returns the host:port the API server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host          string `json:"host" yaml:"host" validate:"required"`
	Port          string `json:"port" yaml:"port" validate:"required"`
	User          string `json:"user" yaml:"user" validate:"required"`
	Password      string `json:"password" yaml:"password"`
	Name          string `json:"name" yaml:"name" validate:"required"`
	SSLMode       string `json:"ssl_mode" yaml:"ssl_mode"`
	MigrationsDir string `json:"migrations_dir" yaml:"migrations_dir"`
}

// RedisConfig holds event bus connection settings.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// Addr returns the host:port of the Redis server.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NATSConfig holds the work queue connection settings.
type NATSConfig struct {
	URL string `json:"url" yaml:"url" validate:"required"`
}

// AuthConfig holds API token settings. An empty secret disables
// authentication entirely.
type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLHrs int    `json:"token_ttl_hours" yaml:"token_ttl_hours"`
}

// Enabled reports whether request authentication is configured.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// WatchConfig holds the drop-directory watcher settings. Each
// immediate subdirectory of Root is treated as a program id; schedule
// files landing there are imported and then moved to ArchiveDir.
type WatchConfig struct {
	Root           string `json:"root" yaml:"root"`
	ArchiveDir     string `json:"archive_dir" yaml:"archive_dir"`
	DebounceMillis int    `json:"debounce_millis" yaml:"debounce_millis"`
	RescanSchedule string `json:"rescan_schedule" yaml:"rescan_schedule"`
	Timezone       string `json:"timezone" yaml:"timezone"`
}

// RetentionConfig controls periodic cleanup of old import records.
type RetentionConfig struct {
	MaxAgeDays    int    `json:"max_age_days" yaml:"max_age_days"`
	PurgeSchedule string `json:"purge_schedule" yaml:"purge_schedule"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               "8080",
			UploadRatePerMin:   30,
			MaxUploadSizeBytes: 64 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          "5432",
			User:          "jengaiq",
			Password:      "jengaiq_dev_password",
			Name:          "jengaiq_schedule",
			SSLMode:       "disable",
			MigrationsDir: "./migrations",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Auth: AuthConfig{
			TokenTTLHrs: 24,
		},
		Watch: WatchConfig{
			Root:           "./drop",
			ArchiveDir:     "./drop/.archive",
			DebounceMillis: 500,
			RescanSchedule: "0 */5 * * * *",
			Timezone:       "UTC",
		},
		Retain: RetentionConfig{
			MaxAgeDays:    90,
			PurgeSchedule: "0 0 3 * * *",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and environment variable overrides, then validates it. An empty path
// skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Env, "ENV")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
	setFromEnv(&c.Log.Format, "LOG_FORMAT")
	setFromEnv(&c.Server.Host, "SERVER_HOST")
	setFromEnv(&c.Server.Port, "PORT")
	setFromEnv(&c.Database.Host, "DB_HOST")
	setFromEnv(&c.Database.Port, "DB_PORT")
	setFromEnv(&c.Database.User, "DB_USER")
	setFromEnv(&c.Database.Password, "DB_PASSWORD")
	setFromEnv(&c.Database.Name, "DB_NAME")
	setFromEnv(&c.Database.SSLMode, "DB_SSLMODE")
	setFromEnv(&c.Database.MigrationsDir, "DB_MIGRATIONS_DIR")
	setFromEnv(&c.Redis.Host, "REDIS_HOST")
	setFromEnv(&c.Redis.Port, "REDIS_PORT")
	setFromEnv(&c.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&c.NATS.URL, "NATS_URL")
	setFromEnv(&c.Auth.JWTSecret, "JWT_SECRET")
	setFromEnv(&c.Watch.Root, "WATCH_ROOT")
	setFromEnv(&c.Watch.ArchiveDir, "WATCH_ARCHIVE_DIR")
	setFromEnv(&c.Watch.Timezone, "WATCH_TIMEZONE")
}

func setFromEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
