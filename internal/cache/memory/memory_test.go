package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

func TestBus_PatternDelivery(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	exact, err := bus.Subscribe(ctx, domain.ChannelAlerts)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, "ch:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelSnapshots, []byte("snap")))
	require.NoError(t, bus.Publish(ctx, domain.ChannelAlerts, []byte("alert")))

	assert.Equal(t, "alert", string(<-exact))
	assert.Equal(t, "snap", string(<-all))
	assert.Equal(t, "alert", string(<-all))

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-exact
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLockManager(t *testing.T) {
	lm := NewLockManager()
	now := time.Now()
	lm.clock = func() time.Time { return now }
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "NIFTY", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "NIFTY", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	_, err = lm.Acquire(ctx, "BANKNIFTY", time.Minute)
	assert.NoError(t, err)

	unlock()
	relock, err := lm.Acquire(ctx, "NIFTY", time.Minute)
	require.NoError(t, err)

	// A stale unlock must not release the new holder.
	unlock()
	_, err = lm.Acquire(ctx, "NIFTY", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	relock()

	now = now.Add(2 * time.Minute)
	_, err = lm.Acquire(ctx, "BANKNIFTY", time.Minute)
	assert.NoError(t, err, "expired lease is reclaimable")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := rl.Allow(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "k", 5, time.Minute)
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "other", 5, time.Minute)
	assert.True(t, ok)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, ok)
	}
	_, _ = rl.Allow(ctx, "10.0.0.2", 2, time.Hour)
	assert.Len(t, rl.buckets, 2)

	now = now.Add(2 * time.Minute)
	ok, _ := rl.Allow(ctx, "10.0.0.3", 2, time.Minute)
	assert.True(t, ok)
	assert.Len(t, rl.buckets, 2, "idle 10.0.0.1 evicted, 10.0.0.2 still inside its window")
	assert.NotContains(t, rl.buckets, "10.0.0.1")
}
