// Package databasetest provides an in-memory Store for tests.
package databasetest

import (
	"testing"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// The database is closed when the test completes.
func NewTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	return database.NewStore(db, logger.Discard())
}
