package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Name != "jengaiq_schedule" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "jengaiq_schedule")
	}
	if cfg.Auth.Enabled() {
		t.Error("Expected auth disabled by default")
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:8080")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
env: production
server:
  port: "9090"
database:
  host: db.internal
  name: schedules
auth:
  jwt_secret: topsecret
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Env = %q, want %q", cfg.Env, "production")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.internal")
	}
	// Values absent from the file keep their defaults.
	if cfg.Database.Port != "5432" {
		t.Errorf("Database.Port = %q, want default %q", cfg.Database.Port, "5432")
	}
	if !cfg.Auth.Enabled() {
		t.Error("Expected auth enabled when a secret is configured")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DB_HOST", "pg.example.com")
	t.Setenv("JWT_SECRET", "fromenv")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Server.Port = %q, want env override %q", cfg.Server.Port, "3000")
	}
	if cfg.Database.Host != "pg.example.com" {
		t.Errorf("Database.Host = %q, want env override %q", cfg.Database.Host, "pg.example.com")
	}
	if cfg.Auth.JWTSecret != "fromenv" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "fromenv")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file, got nil")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	content := `
database:
  host: ""
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error for blank database host, got nil")
	}
}
