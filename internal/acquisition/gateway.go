// Package acquisition selects the upstream option-chain provider for each
// fetch and falls back from the primary to the secondary provider in AUTO
// mode.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/metrics"
	"github.com/alanyoungcy/chainpulse/internal/platform/httpx"
)

// AcquisitionError is the only error type returned by Gateway.Fetch.
type AcquisitionError struct {
	Symbol    string
	Provider  string
	Retryable bool
	Err       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s via %s: %v", e.Symbol, e.Provider, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Gateway fetches raw option chains according to the current provider
// preference.
type Gateway struct {
	primary   domain.ChainProvider
	secondary domain.ChainProvider
	logger    *slog.Logger

	mu   sync.RWMutex
	pref domain.Preference
}

// NewGateway creates a gateway. Either provider may be nil, in which case
// the preference modes that need it report an error.
func NewGateway(primary, secondary domain.ChainProvider, pref domain.Preference, logger *slog.Logger) *Gateway {
	if pref == "" {
		pref = domain.PreferenceAuto
	}
	return &Gateway{
		primary:   primary,
		secondary: secondary,
		pref:      pref,
		logger:    logger.With(slog.String("component", "acquisition")),
	}
}

// Preference returns the current provider preference.
func (g *Gateway) Preference() domain.Preference {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pref
}

// SetPreference changes the provider preference for subsequent fetches.
func (g *Gateway) SetPreference(p domain.Preference) error {
	switch p {
	case domain.PreferencePrimary, domain.PreferenceSecondary, domain.PreferenceAuto:
	default:
		return fmt.Errorf("acquisition: set preference: unknown preference %q", p)
	}

	g.mu.Lock()
	prev := g.pref
	g.pref = p
	g.mu.Unlock()

	if prev != p {
		g.logger.Info("provider preference changed",
			slog.String("from", string(prev)),
			slog.String("to", string(p)),
		)
	}
	return nil
}

// Fetch returns the raw chain for symbol. Any failure is an *AcquisitionError.
func (g *Gateway) Fetch(ctx context.Context, symbol string) (*domain.RawChain, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	switch g.Preference() {
	case domain.PreferencePrimary:
		return g.fetchFrom(ctx, g.primary, "primary", symbol)
	case domain.PreferenceSecondary:
		return g.fetchFrom(ctx, g.secondary, "secondary", symbol)
	default:
		raw, err := g.fetchFrom(ctx, g.primary, "primary", symbol)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		g.logger.Warn("primary provider failed, falling back",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		metrics.ProviderFallbacks.Inc()
		return g.fetchFrom(ctx, g.secondary, "secondary", symbol)
	}
}

// fetchFrom calls one provider and folds every failure mode, including an
// error-flagged or empty payload, into an AcquisitionError.
func (g *Gateway) fetchFrom(ctx context.Context, p domain.ChainProvider, role, symbol string) (*domain.RawChain, error) {
	if p == nil {
		return nil, &AcquisitionError{
			Symbol:   symbol,
			Provider: role,
			Err:      fmt.Errorf("no %s provider configured", role),
		}
	}

	start := time.Now()
	raw, err := p.FetchChain(ctx, symbol)
	if err == nil && (raw == nil || raw.Records == nil) {
		err = fmt.Errorf("%s returned no records: %w", p.Name(), domain.ErrMalformedPayload)
	}
	metrics.RecordProviderCall(p.Name(), time.Since(start), err)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", domain.ErrContextDone, err)
		}
		return nil, &AcquisitionError{
			Symbol:    symbol,
			Provider:  p.Name(),
			Retryable: httpx.IsRetryable(err),
			Err:       err,
		}
	}
	return raw, nil
}
