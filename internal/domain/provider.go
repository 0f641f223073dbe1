package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ChainProvider fetches one raw option chain for a symbol from an upstream.
type ChainProvider interface {
	Name() string
	FetchChain(ctx context.Context, symbol string) (*RawChain, error)
}

// HistoryProvider returns daily OHLCV bars covering the trailing period.
type HistoryProvider interface {
	History(ctx context.Context, ticker string, period time.Duration) ([]Bar, error)
}

// Preference selects which upstream the acquisition gateway uses.
type Preference string

const (
	PreferencePrimary   Preference = "PRIMARY"
	PreferenceSecondary Preference = "SECONDARY"
	PreferenceAuto      Preference = "AUTO"
)

// ParsePreference normalises s into a Preference. The provider
// names (DHAN, SCRAPER, NSE) are accepted as aliases.
func ParsePreference(s string) (Preference, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIMARY", "DHAN":
		return PreferencePrimary, nil
	case "SECONDARY", "SCRAPER", "NSE":
		return PreferenceSecondary, nil
	case "AUTO", "":
		return PreferenceAuto, nil
	default:
		return "", fmt.Errorf("unknown provider preference %q", s)
	}
}

// IndexSymbols are the index underlyings; everything else is an equity.
var IndexSymbols = map[string]bool{
	"NIFTY":      true,
	"BANKNIFTY":  true,
	"FINNIFTY":   true,
	"MIDCPNIFTY": true,
}

// IsIndex reports whether symbol is an index underlying.
func IsIndex(symbol string) bool {
	return IndexSymbols[strings.ToUpper(symbol)]
}
