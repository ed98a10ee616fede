package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/jitter/errors"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
}

func TestOpen_UnwritableDirectory(t *testing.T) {
	_, err := Open("/proc/jitter-cannot-create/cache.db", nil)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "connection.go")
}

func TestOpenWithMigrations(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	var versions []string
	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"000", "001"}, versions)

	_, err = db.Exec("INSERT INTO candidates (key, target, backend, candidate) VALUES ('k', 't', 'cat', 'func F() {}')")
	assert.NoError(t, err)
}

func TestIsDatabaseClosed(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Exec("SELECT 1")
	assert.True(t, IsDatabaseClosed(err))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "get candidate")))
	assert.False(t, IsDatabaseClosed(errors.New("disk full")))
	assert.False(t, IsDatabaseClosed(nil))
}
