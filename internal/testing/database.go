package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// CreateTestDB creates an in-memory SQLite database for cache tests.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
