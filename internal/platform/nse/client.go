// Package nse is the secondary option-chain provider: the public exchange
// website's option-chain JSON endpoints, fetched through a warmed browser-like
// session.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

// Name is the provider name reported in errors and metrics.
const Name = "nse"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:99.0) Gecko/20100101 Firefox/99.0"

// Options configures the scraper.
type Options struct {
	BaseURL string
	// Cooldown is the minimum spacing between outbound calls.
	Cooldown time.Duration
	Timeout  time.Duration
	// SessionTTL bounds how long warmed cookies are reused.
	SessionTTL time.Duration
	Retry      httpx.RetryConfig
}

// Client scrapes option chains from the exchange website.
type Client struct {
	baseURL    string
	timeout    time.Duration
	sessionTTL time.Duration
	cooldown   *httpx.Cooldown
	retry      httpx.RetryConfig
	logger     *slog.Logger

	mu       sync.Mutex
	http     *http.Client
	warmedAt time.Time
}

// NewClient creates a scraper client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.nseindia.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		sessionTTL: opts.SessionTTL,
		cooldown:   httpx.NewCooldown(Name, opts.Cooldown),
		retry:      opts.Retry,
		logger:     logger.With(slog.String("component", "nse")),
	}
}

// Name implements domain.ChainProvider.
func (c *Client) Name() string { return Name }

// ChainURL returns the endpoint serving symbol's chain: the indices endpoint
// for index underlyings, the equities endpoint otherwise.
func (c *Client) ChainURL(symbol string) string {
	symbol = strings.ToUpper(symbol)
	path := "/api/option-chain-equities"
	if domain.IsIndex(symbol) {
		path = "/api/option-chain-indices"
	}
	return c.baseURL + path + "?symbol=" + url.QueryEscape(symbol)
}

// FetchChain returns the raw chain for symbol. An empty or record-less body,
// which the site serves when it rejects a session, is reported as
// domain.ErrMalformedPayload.
func (c *Client) FetchChain(ctx context.Context, symbol string) (*domain.RawChain, error) {
	symbol = strings.ToUpper(symbol)
	target := c.ChainURL(symbol)

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
		return nil, fmt.Errorf("nse: option chain %s: %w", symbol, err)
	}

	var raw domain.RawChain
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("nse: option chain %s: decode: %v: %w", symbol, err, domain.ErrMalformedPayload)
	}
	if raw.Records == nil || len(raw.Records.Data) == 0 {
		return nil, fmt.Errorf("nse: option chain %s: empty records: %w", symbol, domain.ErrMalformedPayload)
	}
	raw.Source = Name
	raw.Body = body
	return &raw, nil
}

// get performs one API request on a warmed session. A 401/403 drops the
// session, re-warms it and repeats the request once.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	for pass := 0; ; pass++ {
		client, err := c.session(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cooldown.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		setHeaders(req)
		req.Header.Set("Referer", c.baseURL+"/option-chain")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return b, nil
		case (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && pass == 0:
			c.logger.Info("session rejected, re-warming", slog.Int("status", resp.StatusCode))
			c.reset()
			continue
		default:
			return nil, &httpx.StatusError{Code: resp.StatusCode, Body: truncate(string(b), 200)}
		}
	}
}

// session returns an HTTP client whose cookie jar holds a fresh homepage
// visit, warming a new one when the current session is missing or stale.
func (c *Client) session(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http != nil && time.Since(c.warmedAt) < c.sessionTTL {
		return c.http, nil
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Timeout: c.timeout, Jar: jar}

	if err := c.cooldown.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("warm session: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("warm session: %w", &httpx.StatusError{Code: resp.StatusCode})
	}

	c.http = client
	c.warmedAt = time.Now()
	c.logger.Debug("session warmed")
	return client, nil
}

func (c *Client) reset() {
	c.mu.Lock()
	c.http = nil
	c.mu.Unlock()
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

var _ domain.ChainProvider = (*Client)(nil)
