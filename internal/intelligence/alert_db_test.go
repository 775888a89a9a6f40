package intelligence

import (
	"testing"
	"time"

	"github.com/shadowtrace/shadowtrace-node/internal/db"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
	"github.com/stretchr/testify/require"
)

func setupAlertDb(t *testing.T) AlertDb {
	t.Helper()
	kv, err := db.OpenInMemoryBadger()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewAlertDb(kv)
}

func testAlert(wallet string, createdAt time.Time, reasons ...string) models.Alert {
	return models.Alert{
		Wallet:    wallet,
		Score:     75,
		Reasons:   reasons,
		CreatedAt: createdAt,
	}
}

func TestAlertDbStoreAndRecent(t *testing.T) {
	alertDb := setupAlertDb(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, alertDb.StoreAlert(testAlert("0xaaa", base, "r1")))
	require.NoError(t, alertDb.StoreAlert(testAlert("0xbbb", base.Add(time.Minute), "r2")))
	require.NoError(t, alertDb.StoreAlert(testAlert("0xccc", base.Add(2*time.Minute), "r3")))

	t.Run("recent alerts come back newest first", func(t *testing.T) {
		alerts, err := alertDb.GetRecentAlerts(0)
		require.NoError(t, err)
		require.Len(t, alerts, 3)
		require.Equal(t, "0xccc", alerts[0].Wallet)
		require.Equal(t, "0xbbb", alerts[1].Wallet)
		require.Equal(t, "0xaaa", alerts[2].Wallet)
	})

	t.Run("limit bounds the scan", func(t *testing.T) {
		alerts, err := alertDb.GetRecentAlerts(2)
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		require.Equal(t, "0xccc", alerts[0].Wallet)
	})

	t.Run("round trip preserves payload", func(t *testing.T) {
		alerts, err := alertDb.GetRecentAlerts(1)
		require.NoError(t, err)
		require.Equal(t, 75, alerts[0].Score)
		require.Equal(t, []string{"r3"}, alerts[0].Reasons)
		require.Equal(t, base.Add(2*time.Minute), alerts[0].CreatedAt.UTC())
	})
}

func TestAlertDbByWallet(t *testing.T) {
	alertDb := setupAlertDb(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, alertDb.StoreAlert(testAlert("0xaaa", base, "r1")))
	require.NoError(t, alertDb.StoreAlert(testAlert("0xbbb", base.Add(time.Minute), "r2")))
	require.NoError(t, alertDb.StoreAlert(testAlert("0xaaa", base.Add(2*time.Minute), "r3")))

	alerts, err := alertDb.GetAlertsByWallet("0xaaa", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, []string{"r3"}, alerts[0].Reasons)
	require.Equal(t, []string{"r1"}, alerts[1].Reasons)

	none, err := alertDb.GetAlertsByWallet("0xzzz", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}
