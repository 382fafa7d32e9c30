package storage

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" || cfg.Port != "5432" {
		t.Errorf("DefaultConfig address = %s:%s, want localhost:5432", cfg.Host, cfg.Port)
	}
	if cfg.DBName != "jengaiq_schedule" {
		t.Errorf("DefaultConfig DBName = %s, want jengaiq_schedule", cfg.DBName)
	}
	if cfg.MaxConns < cfg.MinConns {
		t.Errorf("DefaultConfig pool limits %d/%d, want MaxConns >= MinConns", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxIdleTime <= 0 || cfg.MaxLifetime <= 0 {
		t.Error("DefaultConfig connection lifetimes must be positive")
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.example.com",
		Port:     "5433",
		User:     "jengaiq",
		Password: "secret",
		DBName:   "jengaiq_schedule",
		SSLMode:  "require",
	}

	want := "host=db.example.com port=5433 user=jengaiq password=secret dbname=jengaiq_schedule sslmode=require"
	if got := cfg.dsn(); got != want {
		t.Errorf("dsn() = %q, want %q", got, want)
	}
}

func TestNewDB_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping connection attempt in short mode")
	}

	cfg := &Config{
		Host:        "unreachable.invalid",
		Port:        "9999",
		User:        "nobody",
		Password:    "nothing",
		DBName:      "nowhere",
		SSLMode:     "disable",
		MaxConns:    1,
		MinConns:    1,
		MaxIdleTime: time.Minute,
		MaxLifetime: time.Minute,
	}

	db, err := NewDB(cfg)
	if err == nil {
		db.Close()
		t.Fatal("NewDB() to an unreachable host succeeded, want error")
	}
}
