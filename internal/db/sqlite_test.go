package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSqlite(t *testing.T) *sql.DB {
	t.Helper()
	sqlite, err := OpenSqlite(filepath.Join(t.TempDir(), "sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return sqlite
}

func TestOpenSqliteRunsMigrations(t *testing.T) {
	sqlite := openTestSqlite(t)

	for _, table := range []string{"blocks", "transactions", "erc20_transfers", "wallet_profiles", "osint_feeds"} {
		var name string
		err := sqlite.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "expected table %s to exist", table)
		assert.Equal(t, table, name)
	}
}

func TestTxRunnerCommit(t *testing.T) {
	sqlite := openTestSqlite(t)

	got, err := TxRunner(context.Background(), sqlite, func(tx *sql.Tx) (int64, error) {
		res, err := tx.Exec(`INSERT INTO blocks(block_number, block_time) VALUES (1, 1000)`)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)

	var count int
	require.NoError(t, sqlite.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTxRunnerRollbackOnError(t *testing.T) {
	sqlite := openTestSqlite(t)

	boom := errors.New("boom")
	_, err := TxRunner(context.Background(), sqlite, func(tx *sql.Tx) (int, error) {
		if _, err := tx.Exec(`INSERT INTO blocks(block_number, block_time) VALUES (2, 2000)`); err != nil {
			return 0, err
		}
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, sqlite.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&count))
	assert.Equal(t, 0, count)
}
