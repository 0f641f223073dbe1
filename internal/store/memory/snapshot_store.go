// Package memory implements domain.SnapshotStore in process memory. Each
// symbol holds an immutable snapshot replaced by a single pointer swap.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// SnapshotStore keeps the live snapshot of every symbol in memory.
type SnapshotStore struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	snap atomic.Pointer[domain.Snapshot]
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{slots: make(map[string]*slot)}
}

func (s *SnapshotStore) slot(symbol string, create bool) *slot {
	s.mu.RLock()
	sl, ok := s.slots[symbol]
	s.mu.RUnlock()
	if ok || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[symbol]; !ok {
		sl = &slot{}
		s.slots[symbol] = sl
	}
	return sl
}

// StoreSnapshot builds a new immutable snapshot and publishes it with one
// pointer swap. Readers never block and never see a partial snapshot.
func (s *SnapshotStore) StoreSnapshot(ctx context.Context, quote domain.UnderlyingQuote, legs []domain.OptionLeg) error {
	symbol := strings.ToUpper(quote.Symbol)
	if err := ctx.Err(); err != nil {
		return &domain.PersistenceError{Symbol: symbol, Op: "store", Err: err}
	}

	legs = domain.DedupeLegs(legs)
	snap := &domain.Snapshot{
		Quote: quote,
		Legs:  make([]domain.OptionLeg, len(legs)),
	}
	snap.Quote.Symbol = symbol
	for i, l := range legs {
		l.Symbol = symbol
		l.Timestamp = quote.Timestamp
		snap.Legs[i] = l
	}

	s.slot(symbol, true).snap.Store(snap)
	return nil
}

// Latest returns a copy of the live snapshot for symbol.
func (s *SnapshotStore) Latest(ctx context.Context, symbol string) (domain.Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	sl := s.slot(symbol, false)
	if sl == nil {
		return domain.Snapshot{}, fmt.Errorf("memory: latest %s: %w", symbol, domain.ErrNotReady)
	}
	snap := sl.snap.Load()
	if snap == nil {
		return domain.Snapshot{}, fmt.Errorf("memory: latest %s: %w", symbol, domain.ErrNotReady)
	}

	out := domain.Snapshot{Quote: snap.Quote, Legs: make([]domain.OptionLeg, len(snap.Legs))}
	copy(out.Legs, snap.Legs)
	return out, nil
}

// Symbols returns every symbol with a stored snapshot, sorted.
func (s *SnapshotStore) Symbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.slots))
	for sym, sl := range s.slots {
		if sl.snap.Load() != nil {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
