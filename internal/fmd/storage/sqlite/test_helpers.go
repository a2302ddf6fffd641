package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/fmd-data/sharing.report/internal/db"
)

// setupTestDB opens a temporary database and applies the real migrations so
// store tests exercise the same schema as production.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	d, err := db.NewDB(dbPath)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	migrationsDir := filepath.Join("..", "..", "..", "..", "migrations")
	if err := d.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return d
}
