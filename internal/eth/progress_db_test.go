package eth

import (
	"testing"

	"github.com/shadowtrace/shadowtrace-node/internal/db"
	"github.com/stretchr/testify/require"
)

func TestProgressDb(t *testing.T) {
	kv, err := db.OpenInMemoryBadger()
	require.NoError(t, err)
	defer kv.Close()

	progress := NewProgressDb(kv)

	t.Run("fresh store reports zero", func(t *testing.T) {
		block, err := progress.GetProgress()
		require.NoError(t, err)
		require.Zero(t, block)
	})

	t.Run("set then get round trip", func(t *testing.T) {
		require.NoError(t, progress.SetProgress(21_000_000))
		block, err := progress.GetProgress()
		require.NoError(t, err)
		require.EqualValues(t, 21_000_000, block)
	})

	t.Run("later set overwrites", func(t *testing.T) {
		require.NoError(t, progress.SetProgress(21_000_001))
		block, err := progress.GetProgress()
		require.NoError(t, err)
		require.EqualValues(t, 21_000_001, block)
	})
}
