package storage

import (
	"testing"
)

func TestNewPostgresDB(t *testing.T) {
	db := testPostgres(t)

	// Test ping
	ctx := testContext(t)
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Pool() == nil {
		t.Error("Pool() returned nil")
	}
}

func TestMigrationVersion(t *testing.T) {
	testPostgres(t)

	version, dirty, err := MigrationVersion(testPostgresConfig().URL(), "../../"+DefaultMigrationsPath)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if dirty {
		t.Error("MigrationVersion() reported a dirty database")
	}
	if version < 1 {
		t.Errorf("MigrationVersion() = %d, want at least 1", version)
	}
}

func TestSSLModeDefault(t *testing.T) {
	if got := sslMode(""); got != "disable" {
		t.Errorf("sslMode(\"\") = %q, want disable", got)
	}
	if got := sslMode("require"); got != "require" {
		t.Errorf("sslMode(\"require\") = %q, want require", got)
	}
}
