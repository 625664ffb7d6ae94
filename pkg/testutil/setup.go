package testutil

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/odmhub/odmhub/pkg/database"
	"github.com/odmhub/odmhub/pkg/logger"
)

// TestConfig holds test configuration
type TestConfig struct {
	DBPath    string
	MediaRoot string
}

// SetupTest creates a test environment with a temporary database and media root.
func SetupTest(t *testing.T) (*sql.DB, *TestConfig, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := &TestConfig{
		DBPath:    filepath.Join(tmpDir, "test.db"),
		MediaRoot: filepath.Join(tmpDir, "media"),
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Initialize schema using the same logic as runtime startup.
	if err := database.InitSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close test database after schema init error: %v", closeErr)
		}
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	if err := os.MkdirAll(cfg.MediaRoot, 0750); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close test database after media init error: %v", closeErr)
		}
		t.Fatalf("Failed to create media directory: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return db, cfg, cleanup
}

// CaptureLogs points the default logger at a buffer for the duration of the
// test and restores the previous logger afterwards.
func CaptureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	previous := logger.DefaultLogger
	t.Cleanup(func() { logger.DefaultLogger = previous })

	var buf bytes.Buffer
	logger.Init(logger.Config{Level: "debug", Format: "json", Output: &buf})
	return &buf
}
