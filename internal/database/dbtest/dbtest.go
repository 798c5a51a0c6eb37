// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/logger"
)

// New returns a fresh, migrated in-memory SQLite database that is closed when
// the test finishes.
func New(tb testing.TB) *database.DB {
	tb.Helper()

	db, err := database.OpenSQLite(":memory:", 3, logger.Nop())
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db
}
