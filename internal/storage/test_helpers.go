package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/portfolio-importer/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testPostgresConfig points at the database started by docker-compose
func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "portfolio_test"),
		User:           envOr("POSTGRES_USER", "portfolio"),
		Password:       envOr("POSTGRES_PASSWORD", "portfolio_dev_password"),
		SSLMode:        "disable",
		MaxConnections: 10,
	}
}

// testPostgres connects to the test database and applies the migrations.
// The test is skipped in short mode or when Postgres is not reachable.
func testPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../"+DefaultMigrationsPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}
