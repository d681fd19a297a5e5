// Package testutil provides shared helpers for package tests.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"waypost/internal/database"
)

// NewTestDB opens a throwaway SQLite database in a temp directory and applies
// the real migrations, so tests exercise the same schema as production.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(migrationsDir(t)); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// migrationsDir locates the repo's migrations directory relative to this file
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to locate caller for migrations path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
