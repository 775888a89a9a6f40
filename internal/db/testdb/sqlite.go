package testdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/shadowtrace/shadowtrace-node/internal/db"
	"github.com/stretchr/testify/require"
)

// SetupTestDB opens a migrated throwaway SQLite database under t.TempDir.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sqlite")
	sqlite, err := db.OpenSqlite(path)
	require.NoError(t, err)

	cleanup := func() {
		sqlite.Close()
		os.RemoveAll(filepath.Dir(path))
	}
	return sqlite, cleanup
}
