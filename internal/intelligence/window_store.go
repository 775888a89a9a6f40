package intelligence

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shadowtrace/shadowtrace-node/pkg/risk/models"
	"go.uber.org/zap"
)

// walletWindowState holds the three time-ordered sliding-window sequences of
// one wallet. All access goes through mu: one record-then-evaluate unit per
// wallet is the atomicity boundary.
type walletWindowState struct {
	mu            sync.Mutex
	stableInflows []models.WindowEntry
	outflows      []models.WindowEntry
	bridgeCalls   []models.WindowEntry
}

// WindowStore is the bounded in-memory wallet window store. Capacity is an
// LRU bound on distinct wallets; evicting a wallet is safe because its state
// simply restarts cold on the next event.
type WindowStore struct {
	cache     *lru.Cache[string, *walletWindowState]
	retention time.Duration
}

func NewWindowStore(capacity int, retention time.Duration) (*WindowStore, error) {
	cache, err := lru.NewWithEvict(capacity, func(wallet string, _ *walletWindowState) {
		zap.L().Debug("Evicting wallet window state", zap.String("wallet", wallet))
	})
	if err != nil {
		return nil, err
	}
	return &WindowStore{cache: cache, retention: retention}, nil
}

// state returns the window state for wallet, creating it on first touch.
func (s *WindowStore) state(wallet string) *walletWindowState {
	key := strings.ToLower(wallet)
	if w, ok := s.cache.Get(key); ok {
		return w
	}
	w := &walletWindowState{}
	if prev, ok, _ := s.cache.PeekOrAdd(key, w); ok {
		return prev
	}
	return w
}

// Len reports the number of wallets currently tracked.
func (s *WindowStore) Len() int {
	return s.cache.Len()
}

// purgeLocked drops entries whose timestamp fell out of the retention window.
// Caller holds w.mu. The sweep is a full filter: block-order arrival makes the
// sequences ordered in practice, but purge does not rely on it.
func (w *walletWindowState) purgeLocked(now time.Time, retention time.Duration) {
	cutoff := now.Add(-retention)
	w.stableInflows = purgeEntries(w.stableInflows, cutoff)
	w.outflows = purgeEntries(w.outflows, cutoff)
	w.bridgeCalls = purgeEntries(w.bridgeCalls, cutoff)
}

func purgeEntries(entries []models.WindowEntry, cutoff time.Time) []models.WindowEntry {
	kept := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

// eventCountLocked is the total number of retained events. Caller holds w.mu.
func (w *walletWindowState) eventCountLocked() int {
	return len(w.stableInflows) + len(w.outflows) + len(w.bridgeCalls)
}

// recentEventsLocked merges all sequences newest-first. Caller holds w.mu.
func (w *walletWindowState) recentEventsLocked() []models.RecentEvent {
	merged := make([]models.RecentEvent, 0, w.eventCountLocked())
	appendKind := func(kind models.EventKind, entries []models.WindowEntry) {
		for _, e := range entries {
			amount := "0"
			if e.Amount != nil {
				amount = e.Amount.String()
			}
			merged = append(merged, models.RecentEvent{
				Kind:         kind,
				Hash:         e.Hash,
				Amount:       amount,
				Timestamp:    e.Timestamp,
				Counterparty: e.Counterparty,
				Symbol:       e.Symbol,
			})
		}
	}
	appendKind(models.StableIn, w.stableInflows)
	appendKind(models.ErcOut, w.outflows)
	appendKind(models.BridgeCall, w.bridgeCalls)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	return merged
}

// RecentEvents returns the merged window of one wallet, newest first.
func (s *WindowStore) RecentEvents(wallet string) []models.RecentEvent {
	key := strings.ToLower(wallet)
	w, ok := s.cache.Peek(key)
	if !ok {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recentEventsLocked()
}
