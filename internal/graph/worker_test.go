package graph

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
	"github.com/stretchr/testify/require"
)

// slowStore delays AllNodes so overlapping recomputes can be provoked
// deterministically.
type slowStore struct {
	Store
	loads   atomic.Int64
	release chan struct{}
}

func (s *slowStore) AllNodes() ([]models.GraphNode, error) {
	s.loads.Add(1)
	<-s.release
	return s.Store.AllNodes()
}

func TestWorkerRunOnce(t *testing.T) {
	store := setupStore(t)
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.IngestTransfer("0xa", "0xb", big.NewInt(10), ts))

	worker := NewWorker(NewEngine(store), time.Minute, nil)
	stats, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.NodesScored)
	require.Equal(t, 1, stats.EdgesConsidered)
}

func TestWorkerCoalescesConcurrentRuns(t *testing.T) {
	store := setupStore(t)
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.IngestTransfer("0xa", "0xb", big.NewInt(10), ts))

	slow := &slowStore{Store: store, release: make(chan struct{})}
	worker := NewWorker(NewEngine(slow), time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]ComputeStats, 2)
	run := func(i int) {
		defer wg.Done()
		stats, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
		results[i] = stats
	}

	wg.Add(1)
	go run(0)
	// first run is now blocked inside the store load
	require.Eventually(t, func() bool {
		return slow.loads.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	wg.Add(1)
	go run(1)
	// give the second caller time to join the in-flight run
	time.Sleep(50 * time.Millisecond)

	close(slow.release)
	wg.Wait()

	// one underlying recompute served both callers
	require.EqualValues(t, 1, slow.loads.Load())
	require.Equal(t, results[0], results[1])
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	store := setupStore(t)
	worker := NewWorker(NewEngine(store), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorkerDefaultInterval(t *testing.T) {
	worker := NewWorker(NewEngine(setupStore(t)), 0, nil)
	require.Equal(t, 5*time.Minute, worker.interval)
}
