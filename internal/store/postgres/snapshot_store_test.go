package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// newTestStore connects to the database named by CHAINPULSE_TEST_POSTGRES_DSN
// and skips the test when it is unset.
func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	dsn := os.Getenv("CHAINPULSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHAINPULSE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.RunMigrations(ctx))

	_, err = client.Pool().Exec(ctx, `DELETE FROM underlying_quotes WHERE symbol LIKE 'TEST%'`)
	require.NoError(t, err)
	return NewSnapshotStore(client.Pool())
}

func legsAt(symbol string, ts time.Time, strikes ...float64) []domain.OptionLeg {
	exp := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7)
	var legs []domain.OptionLeg
	for _, k := range strikes {
		for _, typ := range []domain.OptionType{domain.OptionTypeCall, domain.OptionTypePut} {
			legs = append(legs, domain.OptionLeg{
				Timestamp: ts, Symbol: symbol, ExpiryDate: exp,
				StrikePrice: k, OptionType: typ, OI: 100,
			})
		}
	}
	return legs
}

func TestSnapshotStore_ReplacesWholeSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx, "TESTA")
	require.ErrorIs(t, err, domain.ErrNotReady)

	t1 := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.StoreSnapshot(ctx, domain.UnderlyingQuote{Symbol: "TESTA", Value: 100, Timestamp: t1}, legsAt("TESTA", t1, 90, 100, 110)))

	t2 := t1.Add(time.Minute)
	require.NoError(t, s.StoreSnapshot(ctx, domain.UnderlyingQuote{Symbol: "TESTA", Value: 101, Timestamp: t2}, legsAt("TESTA", t2, 100)))

	snap, err := s.Latest(ctx, "TESTA")
	require.NoError(t, err)
	assert.Equal(t, 101.0, snap.Quote.Value)
	require.Len(t, snap.Legs, 2)
	for _, l := range snap.Legs {
		assert.True(t, l.Timestamp.Equal(t2))
	}
}

func TestSnapshotStore_ConcurrentSymbols(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, sym := range []string{"TESTB", "TESTC"} {
			wg.Add(1)
			go func(sym string, i int) {
				defer wg.Done()
				ts := time.Now().UTC().Add(time.Duration(i) * time.Second)
				assert.NoError(t, s.StoreSnapshot(ctx, domain.UnderlyingQuote{Symbol: sym, Value: float64(i), Timestamp: ts}, legsAt(sym, ts, 100, 110)))
			}(sym, i)
		}
	}
	wg.Wait()

	for _, sym := range []string{"TESTB", "TESTC"} {
		snap, err := s.Latest(ctx, sym)
		require.NoError(t, err)
		require.Len(t, snap.Legs, 4)
		for _, l := range snap.Legs {
			assert.True(t, l.Timestamp.Equal(snap.Quote.Timestamp), "legs must belong to the live quote")
		}
	}
}
