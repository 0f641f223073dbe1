package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

func snapshot(symbol string, ts time.Time, value float64, strikes ...float64) (domain.UnderlyingQuote, []domain.OptionLeg) {
	q := domain.UnderlyingQuote{Symbol: symbol, Value: value, Timestamp: ts}
	var legs []domain.OptionLeg
	for _, k := range strikes {
		legs = append(legs,
			domain.OptionLeg{Timestamp: ts, Symbol: symbol, StrikePrice: k, OptionType: domain.OptionTypeCall, OI: 10},
			domain.OptionLeg{Timestamp: ts, Symbol: symbol, StrikePrice: k, OptionType: domain.OptionTypePut, OI: 20},
		)
	}
	return q, legs
}

func TestLatest_NotReady(t *testing.T) {
	s := NewSnapshotStore()
	_, err := s.Latest(context.Background(), "NIFTY")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestStoreSnapshot_ReplacesWholesale(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()
	v1 := time.Date(2024, 10, 20, 10, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Minute)

	q, legs := snapshot("NIFTY", v1, 19500, 19400, 19500, 19600)
	require.NoError(t, s.StoreSnapshot(ctx, q, legs))
	q, legs = snapshot("BANKNIFTY", v1, 44000, 44000)
	require.NoError(t, s.StoreSnapshot(ctx, q, legs))

	q, legs = snapshot("nifty", v2, 19550, 19500)
	require.NoError(t, s.StoreSnapshot(ctx, q, legs))

	snap, err := s.Latest(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 19550.0, snap.Quote.Value)
	require.Len(t, snap.Legs, 2)
	for _, l := range snap.Legs {
		assert.True(t, l.Timestamp.Equal(v2))
	}

	other, err := s.Latest(ctx, "BANKNIFTY")
	require.NoError(t, err)
	assert.Len(t, other.Legs, 2)
	assert.True(t, other.Quote.Timestamp.Equal(v1))

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BANKNIFTY", "NIFTY"}, syms)
}

func TestStoreSnapshot_EmptyLegsClearsPrevious(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()
	ts := time.Now()

	q, legs := snapshot("TCS", ts, 3500, 3400, 3500)
	require.NoError(t, s.StoreSnapshot(ctx, q, legs))
	q, _ = snapshot("TCS", ts.Add(time.Minute), 3510)
	require.NoError(t, s.StoreSnapshot(ctx, q, nil))

	snap, err := s.Latest(ctx, "TCS")
	require.NoError(t, err)
	assert.Empty(t, snap.Legs)
	assert.Equal(t, 3510.0, snap.Quote.Value)
}

func TestStoreSnapshot_DuplicateIdentityKeepsLast(t *testing.T) {
	s := NewSnapshotStore()
	ts := time.Now()
	q, legs := snapshot("X", ts, 1, 100)
	dup := legs[0]
	dup.OI = 999
	legs = append(legs, dup)

	require.NoError(t, s.StoreSnapshot(context.Background(), q, legs))
	snap, err := s.Latest(context.Background(), "X")
	require.NoError(t, err)
	require.Len(t, snap.Legs, 2)
	assert.Equal(t, int64(999), snap.Legs[1].OI)
}

func TestStoreSnapshot_CancelledContext(t *testing.T) {
	s := NewSnapshotStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, legs := snapshot("NIFTY", time.Now(), 1, 100)
	err := s.StoreSnapshot(ctx, q, legs)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "NIFTY", perr.Symbol)

	_, err = s.Latest(context.Background(), "NIFTY")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestConcurrentReadersNeverSeeMixedSnapshots(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for _, sym := range []string{"A", "B"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ts := base.Add(time.Duration(i) * time.Second)
				q, legs := snapshot(sym, ts, float64(i), 100, 110, 120)
				assert.NoError(t, s.StoreSnapshot(ctx, q, legs))
			}
		}(sym)
	}

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func(r int) {
			defer readers.Done()
			sym := []string{"A", "B"}[r%2]
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := s.Latest(ctx, sym)
				if err != nil {
					continue
				}
				for _, l := range snap.Legs {
					if !l.Timestamp.Equal(snap.Quote.Timestamp) {
						assert.Fail(t, fmt.Sprintf("%s: leg ts %v != quote ts %v", sym, l.Timestamp, snap.Quote.Timestamp))
						return
					}
				}
			}
		}(r)
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	for _, sym := range []string{"A", "B"} {
		snap, err := s.Latest(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, 199.0, snap.Quote.Value)
		assert.Len(t, snap.Legs, 6)
	}
}
