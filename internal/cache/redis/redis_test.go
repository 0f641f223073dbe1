package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// newTestClient connects to CHAINPULSE_TEST_REDIS_ADDR and skips the test when
// it is unset. Every test gets its own key prefix.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("CHAINPULSE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAINPULSE_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, KeyPrefix: "test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManager(t *testing.T) {
	lm := NewLockManager(newTestClient(t))
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "ingest:NIFTY", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "ingest:NIFTY", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := lm.Acquire(ctx, "ingest:BANKNIFTY", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "ingest:NIFTY", time.Minute)
	require.NoError(t, err)
	again()
}

func TestSignalBus_RoundTrip(t *testing.T) {
	bus := NewSignalBus(newTestClient(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.ChannelAlerts)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, domain.ChannelAlerts, []byte(`{"symbol":"NIFTY"}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"symbol":"NIFTY"}`, string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(newTestClient(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
