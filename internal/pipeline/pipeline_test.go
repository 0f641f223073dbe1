package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/service"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recorder struct {
	mu    sync.Mutex
	calls []string
	at    []time.Time
	err   error
}

func (r *recorder) Run(_ context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, symbol)
	r.at = append(r.at, time.Now())
	return r.err
}

func (r *recorder) count(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == symbol {
			n++
		}
	}
	return n
}

func TestNewScheduler_DropsEmptyTiers(t *testing.T) {
	s := NewScheduler([]Tier{
		{Name: "indices", Interval: time.Minute, Symbols: []string{" nifty ", "", "banknifty"}},
		{Name: "empty", Interval: time.Minute},
		{Name: "disabled", Symbols: []string{"TCS"}},
	}, &recorder{}, Options{}, discard())

	require.Len(t, s.Tiers(), 1)
	assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, s.Tiers()[0].Symbols)
}

func TestPrime_OrderAndPause(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler([]Tier{
		{Name: "indices", Interval: time.Hour, Symbols: []string{"NIFTY", "BANKNIFTY"}},
		{Name: "equities", Interval: time.Hour, Symbols: []string{"RELIANCE"}},
	}, rec, Options{PrimePause: 20 * time.Millisecond}, discard())

	require.NoError(t, s.Prime(context.Background()))
	assert.Equal(t, []string{"NIFTY", "BANKNIFTY", "RELIANCE"}, rec.calls)
	for i := 1; i < len(rec.at); i++ {
		assert.GreaterOrEqual(t, rec.at[i].Sub(rec.at[i-1]), 15*time.Millisecond)
	}
}

func TestPrime_ErrorsDoNotStop(t *testing.T) {
	rec := &recorder{err: errors.New("upstream down")}
	s := NewScheduler([]Tier{{Name: "a", Interval: time.Hour, Symbols: []string{"X", "Y"}}}, rec, Options{}, discard())
	require.NoError(t, s.Prime(context.Background()))
	assert.Len(t, rec.calls, 2)
}

func TestPrime_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	s := NewScheduler([]Tier{{Name: "a", Interval: time.Hour, Symbols: []string{"X", "Y"}}}, rec,
		Options{PrimePause: time.Second}, discard())
	assert.ErrorIs(t, s.Prime(ctx), context.Canceled)
	assert.Len(t, rec.calls, 1)
}

func TestRun_TiersTickIndependently(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler([]Tier{
		{Name: "fast", Interval: 10 * time.Millisecond, Symbols: []string{"NIFTY"}},
		{Name: "slow", Interval: time.Hour, Symbols: []string{"TCS"}},
	}, rec, Options{SkipPrime: true}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return rec.count("NIFTY") >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, rec.count("TCS"))
}

type fakeIngester struct {
	res service.IngestResult
	err error
}

func (f fakeIngester) Ingest(context.Context, string) (service.IngestResult, error) {
	return f.res, f.err
}

type fakeAlerts struct {
	calls int
	err   error
}

func (f *fakeAlerts) EvaluateSymbol(context.Context, string) ([]domain.AlertEvent, error) {
	f.calls++
	return nil, f.err
}

func TestIngestJob(t *testing.T) {
	ctx := context.Background()

	alerts := &fakeAlerts{}
	require.NoError(t, NewIngestJob(fakeIngester{}, alerts, discard()).Run(ctx, "NIFTY"))
	assert.Equal(t, 1, alerts.calls)

	alerts = &fakeAlerts{}
	require.NoError(t, NewIngestJob(fakeIngester{res: service.IngestResult{Skipped: true}}, alerts, discard()).Run(ctx, "NIFTY"))
	assert.Zero(t, alerts.calls)

	alerts = &fakeAlerts{}
	err := NewIngestJob(fakeIngester{err: errors.New("boom")}, alerts, discard()).Run(ctx, "NIFTY")
	assert.Error(t, err)
	assert.Zero(t, alerts.calls)

	alerts = &fakeAlerts{err: errors.New("history down")}
	assert.NoError(t, NewIngestJob(fakeIngester{}, alerts, discard()).Run(ctx, "NIFTY"))

	assert.NoError(t, NewIngestJob(fakeIngester{}, nil, discard()).Run(ctx, "NIFTY"))
}
