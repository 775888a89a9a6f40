package intelligence

import (
	"math/big"
	"testing"
	"time"

	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
	"github.com/stretchr/testify/require"
)

func TestWindowStoreState(t *testing.T) {
	store, err := NewWindowStore(16, 24*time.Hour)
	require.NoError(t, err)

	t.Run("same wallet returns same state", func(t *testing.T) {
		a := store.state("0xAAAA")
		b := store.state("0xaaaa")
		require.Same(t, a, b)
	})

	t.Run("distinct wallets get distinct state", func(t *testing.T) {
		a := store.state("0xaaaa")
		b := store.state("0xbbbb")
		require.NotSame(t, a, b)
	})
}

func TestWindowStoreEviction(t *testing.T) {
	store, err := NewWindowStore(2, 24*time.Hour)
	require.NoError(t, err)

	store.state("0x01")
	store.state("0x02")
	store.state("0x03")
	require.Equal(t, 2, store.Len())

	// The evicted wallet restarts cold on next touch.
	w := store.state("0x01")
	require.Empty(t, w.stableInflows)
}

func TestPurgeLocked(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	retention := 24 * time.Hour

	w := &walletWindowState{}
	w.stableInflows = []models.WindowEntry{
		{Hash: "0xold", Amount: big.NewInt(1), Timestamp: now.Add(-25 * time.Hour)},
		{Hash: "0xfresh", Amount: big.NewInt(2), Timestamp: now.Add(-time.Hour)},
	}
	w.outflows = []models.WindowEntry{
		{Hash: "0xboundary", Amount: big.NewInt(3), Timestamp: now.Add(-retention)},
	}
	w.bridgeCalls = []models.WindowEntry{
		{Hash: "0xstale", Timestamp: now.Add(-48 * time.Hour)},
	}

	w.mu.Lock()
	w.purgeLocked(now, retention)
	w.mu.Unlock()

	require.Len(t, w.stableInflows, 1)
	require.Equal(t, "0xfresh", w.stableInflows[0].Hash)
	// An entry exactly at the cutoff is retained.
	require.Len(t, w.outflows, 1)
	require.Empty(t, w.bridgeCalls)
}

func TestPurgeDoesNotAssumeOrder(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// Out-of-order arrival: stale entry in the middle.
	w := &walletWindowState{}
	w.outflows = []models.WindowEntry{
		{Hash: "0xa", Timestamp: now.Add(-time.Hour)},
		{Hash: "0xb", Timestamp: now.Add(-30 * time.Hour)},
		{Hash: "0xc", Timestamp: now.Add(-2 * time.Hour)},
	}

	w.mu.Lock()
	w.purgeLocked(now, 24*time.Hour)
	w.mu.Unlock()

	require.Len(t, w.outflows, 2)
	require.Equal(t, "0xa", w.outflows[0].Hash)
	require.Equal(t, "0xc", w.outflows[1].Hash)
}

func TestRecentEventsNewestFirst(t *testing.T) {
	store, err := NewWindowStore(16, 24*time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	w := store.state("0xwallet")
	w.stableInflows = []models.WindowEntry{
		{Hash: "0xin", Amount: big.NewInt(100), Timestamp: now.Add(-2 * time.Hour), Symbol: "USDC"},
	}
	w.outflows = []models.WindowEntry{
		{Hash: "0xout", Amount: big.NewInt(50), Timestamp: now.Add(-time.Hour)},
	}
	w.bridgeCalls = []models.WindowEntry{
		{Hash: "0xbridge", Timestamp: now.Add(-3 * time.Hour), Counterparty: "0xbridgeaddr"},
	}

	events := store.RecentEvents("0xWALLET")
	require.Len(t, events, 3)
	require.Equal(t, "0xout", events[0].Hash)
	require.Equal(t, models.ErcOut, events[0].Kind)
	require.Equal(t, "0xin", events[1].Hash)
	require.Equal(t, "USDC", events[1].Symbol)
	require.Equal(t, "0xbridge", events[2].Hash)
	require.Equal(t, models.BridgeCall, events[2].Kind)
}

func TestRecentEventsUnknownWallet(t *testing.T) {
	store, err := NewWindowStore(16, 24*time.Hour)
	require.NoError(t, err)
	require.Nil(t, store.RecentEvents("0xnobody"))
}
