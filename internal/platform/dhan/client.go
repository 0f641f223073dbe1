// Package dhan is the primary option-chain provider: the authenticated Dhan
// v2 REST API, keyed by numeric security IDs.
package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

// Name is the provider name reported in errors and metrics.
const Name = "dhan"

// Options configures the Dhan client.
type Options struct {
	BaseURL     string
	ClientID    string
	AccessToken string
	// Cooldown is the minimum spacing between outbound calls.
	Cooldown time.Duration
	Timeout  time.Duration
	Retry    httpx.RetryConfig
	Location *time.Location
}

// Client is the REST client for the Dhan option-chain API.
type Client struct {
	baseURL     string
	clientID    string
	accessToken string
	demo        bool
	httpClient  *http.Client
	cooldown    *httpx.Cooldown
	retry       httpx.RetryConfig
	loc         *time.Location
	directory   *Directory
	logger      *slog.Logger
	now         func() time.Time
}

// NewClient creates a Dhan client. When credentials are missing or still set
// to DEMO placeholders the client serves a deterministic demo chain instead
// of calling the API.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.dhan.co/v2"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Location == nil {
		opts.Location = domain.ExchangeLocation("")
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		clientID:    opts.ClientID,
		accessToken: opts.AccessToken,
		demo:        IsDemoCredential(opts.ClientID) || IsDemoCredential(opts.AccessToken),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		cooldown:    httpx.NewCooldown(Name, opts.Cooldown),
		retry:       opts.Retry,
		loc:         opts.Location,
		logger:      logger.With(slog.String("component", "dhan")),
		now:         time.Now,
	}
	c.directory = NewDirectory(c.loadInstruments)

	if c.demo {
		c.logger.Warn("dhan credentials missing, serving demo chain")
	}
	return c
}

// IsDemoCredential reports whether a credential value selects demo mode.
func IsDemoCredential(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.HasPrefix(strings.ToUpper(v), "DEMO")
}

// Name implements domain.ChainProvider.
func (c *Client) Name() string { return Name }

// Demo reports whether the client is serving the demo chain.
func (c *Client) Demo() bool { return c.demo }

// FetchChain resolves symbol to its security ID, finds the nearest expiry and
// returns that expiry's chain converted to the provider-neutral payload.
func (c *Client) FetchChain(ctx context.Context, symbol string) (*domain.RawChain, error) {
	symbol = strings.ToUpper(symbol)
	if c.demo {
		if _, err := c.directory.Resolve(ctx, symbol); err != nil {
			return nil, err
		}
		return demoChain(c.now().In(c.loc)), nil
	}

	id, err := c.directory.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	req := chainRequest{UnderlyingScrip: id, UnderlyingSeg: Segment(symbol)}

	var expiries expiryListResponse
	if _, err := c.post(ctx, "/optionchain/expirylist", req, &expiries); err != nil {
		return nil, fmt.Errorf("dhan: expiry list %s: %w", symbol, err)
	}
	if !strings.EqualFold(expiries.Status, "success") || len(expiries.Data) == 0 {
		return nil, fmt.Errorf("dhan: expiry list %s: status %q: %w", symbol, expiries.Status, domain.ErrMalformedPayload)
	}
	sort.Strings(expiries.Data)
	req.Expiry = expiries.Data[0]

	var chain chainResponse
	body, err := c.post(ctx, "/optionchain", req, &chain)
	if err != nil {
		return nil, fmt.Errorf("dhan: option chain %s: %w", symbol, err)
	}
	if !strings.EqualFold(chain.Status, "success") {
		return nil, fmt.Errorf("dhan: option chain %s: status %q: %w", symbol, chain.Status, domain.ErrMalformedPayload)
	}

	raw, err := c.toRaw(chain.Data, req.Expiry)
	if err != nil {
		return nil, fmt.Errorf("dhan: option chain %s: %w", symbol, err)
	}
	raw.Body = body
	return raw, nil
}

// toRaw converts a Dhan chain into the provider-neutral payload. OI change
// is derived from the previous session's open interest.
func (c *Client) toRaw(data chainData, expiry string) (*domain.RawChain, error) {
	exp, err := time.ParseInLocation(time.DateOnly, expiry, c.loc)
	if err != nil {
		return nil, fmt.Errorf("parse expiry %q: %w", expiry, domain.ErrMalformedPayload)
	}
	expStr := exp.Format(domain.ExpiryLayout)

	strikes := make([]string, 0, len(data.OC))
	for k := range data.OC {
		strikes = append(strikes, k)
	}
	sort.Slice(strikes, func(i, j int) bool {
		a, _ := strconv.ParseFloat(strikes[i], 64)
		b, _ := strconv.ParseFloat(strikes[j], 64)
		return a < b
	})

	side := func(q *sideQuote) *domain.RawSide {
		if q == nil {
			return nil
		}
		return &domain.RawSide{
			LastPrice:            q.LastPrice,
			OpenInterest:         q.OI,
			ChangeInOpenInterest: q.OI - q.PreviousOI,
			TotalTradedVolume:    q.Volume,
			ImpliedVolatility:    q.ImpliedVolatility,
			UnderlyingValue:      data.LastPrice,
		}
	}

	entries := make([]domain.RawEntry, 0, len(strikes))
	for _, k := range strikes {
		s := data.OC[k]
		entries = append(entries, domain.RawEntry{
			StrikePrice: k,
			ExpiryDate:  expStr,
			CE:          side(s.CE),
			PE:          side(s.PE),
		})
	}

	return &domain.RawChain{
		Source: Name,
		Records: &domain.RawRecords{
			UnderlyingValue: data.LastPrice,
			Timestamp:       c.now().In(c.loc).Format(domain.TimestampLayout),
			ExpiryDates:     []string{expStr},
			Data:            entries,
		},
	}, nil
}

// loadInstruments fetches the instrument directory, or the demo directory
// when running without credentials.
func (c *Client) loadInstruments(ctx context.Context) ([]Instrument, error) {
	if c.demo {
		return demoInstruments, nil
	}
	var items []Instrument
	if _, err := c.do(ctx, http.MethodGet, "/instruments", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) post(ctx context.Context, path string, body, out any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

// do sends one authenticated request through the cooldown limiter, retrying
// transient failures, and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) ([]byte, error) {
	var respBody []byte
	err := httpx.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.cooldown.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("access-token", c.accessToken)
		req.Header.Set("client-id", c.clientID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if err := checkStatus(resp.StatusCode, b); err != nil {
			return err
		}
		respBody = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("decode %s: %v: %w", path, err, domain.ErrMalformedPayload)
		}
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to errors, keeping the status
// available for retry classification.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.ErrorMessage
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}

	statusErr := &httpx.StatusError{Code: statusCode, Body: msg}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, statusErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, statusErr)
	default:
		return statusErr
	}
}

var _ domain.ChainProvider = (*Client)(nil)
