// Package yahoo provides daily price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

// DefaultTickers maps tracked symbols to their history tickers.
var DefaultTickers = map[string]string{
	"NIFTY":     "^NSEI",
	"BANKNIFTY": "^NSEBANK",
	"FINNIFTY":  "^NSEBANK",
}

// Options configures the history client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retry   httpx.RetryConfig
	// Tickers overrides DefaultTickers when non-empty.
	Tickers map[string]string
}

// Client fetches daily OHLCV bars.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      httpx.RetryConfig
	tickers    map[string]string
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a history client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://query1.finance.yahoo.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	tickers := make(map[string]string, len(DefaultTickers))
	src := opts.Tickers
	if len(src) == 0 {
		src = DefaultTickers
	}
	for k, v := range src {
		tickers[strings.ToUpper(k)] = v
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      opts.Retry,
		tickers:    tickers,
		logger:     logger.With(slog.String("component", "yahoo")),
		now:        time.Now,
	}
}

// Ticker returns the history ticker for symbol.
func (c *Client) Ticker(symbol string) (string, bool) {
	t, ok := c.tickers[strings.ToUpper(symbol)]
	return t, ok
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// History returns daily bars for ticker covering the trailing period, oldest
// first. Days without a close are skipped.
func (c *Client) History(ctx context.Context, ticker string, period time.Duration) ([]domain.Bar, error) {
	end := c.now()
	start := end.Add(-period)

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")
	target := c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker) + "?" + params.Encode()

	var body []byte
	err := httpx.Do(ctx, c.retry, func(ctx context.Context) error {
		b, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo: history %s: %w", ticker, err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: history %s: decode: %v: %w", ticker, err, domain.ErrMalformedPayload)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: history %s: %s: %w", ticker, resp.Chart.Error.Description, domain.ErrNotFound)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	bars := toBars(resp.Chart.Result[0])
	c.logger.Debug("history fetched", slog.String("ticker", ticker), slog.Int("bars", len(bars)))
	return bars, nil
}

func toBars(r chartResult) []domain.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	at := func(s []*float64, i int) float64 {
		if i < len(s) && s[i] != nil {
			return *s[i]
		}
		return 0
	}

	bars := make([]domain.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		var vol int64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		bars = append(bars, domain.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  *q.Close[i],
			Volume: vol,
		})
	}
	return bars
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpx.StatusError{Code: resp.StatusCode}
	}
	return b, nil
}

var _ domain.HistoryProvider = (*Client)(nil)
