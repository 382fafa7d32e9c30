package storage

import (
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
)

// testTables lists every table the integration tests write to, child
// tables first so the truncate order never trips a foreign key.
var testTables = []string{
	"import_history",
	"schedule_calendars",
	"schedule_relationships",
	"schedule_wbs",
	"schedule_tasks",
	"schedule_projects",
	"import_payloads",
	"imports",
}

// SetupTestDB connects to the integration database named by the DB_*
// environment variables, falling back to the development defaults.
// Tests are skipped when no database is reachable. The returned
// cleanup truncates every test table and closes the pool.
func SetupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	cfg := &Config{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "jengaiq"),
		Password: envOr("DB_PASSWORD", "jengaiq_dev_password"),
		DBName:   envOr("DB_NAME", "jengaiq_schedule"),
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 2,
	}

	db, err := NewDB(cfg)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v. Set DB_HOST, DB_PORT, etc. to run integration tests", err)
	}

	// The migration path depends on which package the test runs from.
	if err := RunMigrations(cfg, "./../../migrations"); err != nil {
		if err := RunMigrations(cfg, "../../../migrations"); err != nil {
			t.Logf("Warning: Failed to run migrations: %v", err)
		}
	}

	cleanup := func() {
		for _, table := range testTables {
			db.Exec("TRUNCATE TABLE " + table + " CASCADE")
		}
		db.Close()
	}

	return db, cleanup
}

// CreateTestRepositories wires repositories around a no-op state
// publisher so integration tests do not need Redis.
func CreateTestRepositories(db *gorm.DB) (ImportRepository, ScheduleRepository) {
	stateManager := state.NewManager(&state.NoOpPublisher{})
	return NewImportRepository(db, stateManager), NewScheduleRepository(db)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
