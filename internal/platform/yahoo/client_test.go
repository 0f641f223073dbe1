package yahoo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL: srv.URL,
		Retry:   httpx.RetryConfig{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHistory_SkipsMissingCloses(t *testing.T) {
	var gotPath, gotInterval string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1700000000,1700086400,1700172800],
			"indicators":{"quote":[{"open":[1,2,3],"high":[1,2,3],"low":[1,2,3],
			"close":[100.5,null,102.0],"volume":[10,null,30]}]}}],"error":null}}`))
	})

	bars, err := c.History(context.Background(), "^NSEI", 35*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/^NSEI", gotPath)
	assert.Equal(t, "1d", gotInterval)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 102.0, bars[1].Close)
	assert.Equal(t, int64(30), bars[1].Volume)
}

func TestHistory_ChartError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := c.History(context.Background(), "^NOPE", time.Hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicker(t *testing.T) {
	c := NewClient(Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tk, ok := c.Ticker("finnifty")
	require.True(t, ok)
	assert.Equal(t, "^NSEBANK", tk)

	_, ok = c.Ticker("RELIANCE")
	assert.False(t, ok)

	custom := NewClient(Options{Tickers: map[string]string{"reliance": "RELIANCE.NS"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tk, ok = custom.Ticker("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, "RELIANCE.NS", tk)
}
