package nse

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

const chainBody = `{"records":{"underlyingValue":19510.35,"timestamp":"20-Oct-2024 15:30:00",
"expiryDates":["24-Oct-2024"],
"data":[{"strikePrice":19500,"expiryDate":"24-Oct-2024",
"CE":{"lastPrice":"1,020.50","openInterest":5000,"changeinOpenInterest":"-","totalTradedVolume":420,"impliedVolatility":17.2,"underlyingValue":19510.35}}]}}`

type fakeSite struct {
	warms      atomic.Int32
	apiCalls   atomic.Int32
	rejectOnce atomic.Bool
	body       string
	lastPath   atomic.Value
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		f.warms.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "warm", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	api := func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		f.lastPath.Store(r.URL.Path + "?" + r.URL.RawQuery)
		if _, err := r.Cookie("nsit"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.rejectOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(f.body))
	}
	mux.HandleFunc("GET /api/option-chain-indices", api)
	mux.HandleFunc("GET /api/option-chain-equities", api)
	return mux
}

func newTestClient(t *testing.T, f *fakeSite) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL: srv.URL,
		Retry:   httpx.RetryConfig{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchChain_WarmsSessionOnce(t *testing.T) {
	f := &fakeSite{body: chainBody}
	c := newTestClient(t, f)

	for i := 0; i < 2; i++ {
		raw, err := c.FetchChain(context.Background(), "nifty")
		require.NoError(t, err)
		require.NotNil(t, raw.Records)
		assert.Equal(t, Name, raw.Source)
		assert.Equal(t, 19510.35, raw.Records.UnderlyingValue)
		require.Len(t, raw.Records.Data, 1)
		assert.Equal(t, "1,020.50", raw.Records.Data[0].CE.LastPrice)
	}

	assert.Equal(t, int32(1), f.warms.Load())
	assert.Equal(t, "/api/option-chain-indices?symbol=NIFTY", f.lastPath.Load())
}

func TestFetchChain_EquityEndpoint(t *testing.T) {
	f := &fakeSite{body: chainBody}
	c := newTestClient(t, f)

	_, err := c.FetchChain(context.Background(), "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "/api/option-chain-equities?symbol=RELIANCE", f.lastPath.Load())
}

func TestFetchChain_RewarmsAfterRejection(t *testing.T) {
	f := &fakeSite{body: chainBody}
	f.rejectOnce.Store(true)
	c := newTestClient(t, f)

	_, err := c.FetchChain(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.warms.Load())
	assert.Equal(t, int32(2), f.apiCalls.Load())
}

func TestFetchChain_EmptyPayloadIsMalformed(t *testing.T) {
	f := &fakeSite{body: `{}`}
	c := newTestClient(t, f)

	_, err := c.FetchChain(context.Background(), "NIFTY")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestChainURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "https://example.test/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "https://example.test/api/option-chain-indices?symbol=BANKNIFTY", c.ChainURL("banknifty"))
	assert.Equal(t, "https://example.test/api/option-chain-equities?symbol=M%26M", c.ChainURL("M&M"))
}
