// Package normalize converts raw provider payloads into canonical snapshots,
// computing Greeks for every leg.
package normalize

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Options tunes the parser.
type Options struct {
	// RiskFreeRate is the constant annual rate used for Greeks.
	RiskFreeRate float64
	// FallbackIV, in percent, substitutes a missing IV for Greeks only.
	FallbackIV float64
	// MinTimeToExpiry floors time to expiry, in years.
	MinTimeToExpiry float64
	// Location is the exchange timezone payload timestamps are expressed in.
	Location *time.Location
}

// DefaultOptions returns r=5%, 15% fallback IV and a ~5 minute expiry floor
// in Asia/Kolkata.
func DefaultOptions() Options {
	return Options{
		RiskFreeRate:    0.05,
		FallbackIV:      15.0,
		MinTimeToExpiry: 1e-5,
		Location:        domain.ExchangeLocation(domain.DefaultExchangeZone),
	}
}

// Parser is the chain normalizer.
type Parser struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a parser. Zero-valued options fall back to defaults.
func NewParser(opts Options, logger *slog.Logger) *Parser {
	d := DefaultOptions()
	if opts.FallbackIV <= 0 {
		opts.FallbackIV = d.FallbackIV
	}
	if opts.MinTimeToExpiry <= 0 {
		opts.MinTimeToExpiry = d.MinTimeToExpiry
	}
	if opts.Location == nil {
		opts.Location = d.Location
	}
	return &Parser{
		opts:   opts,
		logger: logger.With(slog.String("component", "normalize")),
		now:    time.Now,
	}
}

// Parse converts raw into a quote and its legs. A payload without the
// records structure, or with an unparseable timestamp, yields (nil, nil).
func (p *Parser) Parse(symbol string, raw *domain.RawChain) (*domain.UnderlyingQuote, []domain.OptionLeg) {
	symbol = strings.ToUpper(symbol)
	if raw == nil || raw.Records == nil {
		p.logger.Error("malformed payload: missing records", slog.String("symbol", symbol))
		return nil, nil
	}
	rec := raw.Records

	ts, ok := p.timestamp(rec.Timestamp)
	if !ok {
		p.logger.Error("malformed payload: bad timestamp",
			slog.String("symbol", symbol),
			slog.String("timestamp", rec.Timestamp),
		)
		return nil, nil
	}

	spot := underlyingValue(rec)
	if spot <= 0 {
		p.logger.Error("underlying value missing, greeks will be zero", slog.String("symbol", symbol))
		spot = 0
	}

	quote := &domain.UnderlyingQuote{Symbol: symbol, Value: spot, Timestamp: ts}
	today := midnight(ts)

	legs := make([]domain.OptionLeg, 0, 2*len(rec.Data))
	for _, entry := range rec.Data {
		expiry, err := time.ParseInLocation(domain.ExpiryLayout, strings.TrimSpace(entry.ExpiryDate), p.opts.Location)
		if err != nil {
			continue
		}
		days := int(math.Round(expiry.Sub(today).Hours() / 24))
		if days < 0 {
			continue
		}
		t := math.Max(float64(days)/365.0, p.opts.MinTimeToExpiry)
		strike := CoerceFloat(entry.StrikePrice, 0)

		for _, side := range []struct {
			typ  domain.OptionType
			data *domain.RawSide
		}{
			{domain.OptionTypeCall, entry.CE},
			{domain.OptionTypePut, entry.PE},
		} {
			if side.data == nil {
				continue
			}
			legs = append(legs, p.leg(symbol, ts, expiry, strike, t, spot, side.typ, side.data))
		}
	}

	p.logger.Info("parsed chain",
		slog.String("symbol", symbol),
		slog.Int("legs", len(legs)),
		slog.Float64("spot", spot),
	)
	return quote, legs
}

func (p *Parser) leg(symbol string, ts, expiry time.Time, strike, t, spot float64, typ domain.OptionType, d *domain.RawSide) domain.OptionLeg {
	iv := CoerceFloat(d.ImpliedVolatility, 0)

	calcIV := iv
	if calcIV <= 0 {
		calcIV = p.opts.FallbackIV
	}
	sigma := calcIV
	if sigma > 1 {
		sigma /= 100
	}

	var g Greeks
	if spot > 0 {
		g = BSMGreeks(spot, strike, t, p.opts.RiskFreeRate, sigma, typ)
	}

	return domain.OptionLeg{
		Timestamp:   ts,
		Symbol:      symbol,
		ExpiryDate:  expiry,
		StrikePrice: strike,
		OptionType:  typ,
		LastPrice:   CoerceFloat(d.LastPrice, 0),
		IV:          iv,
		OI:          CoerceInt(d.OpenInterest, 0),
		OIChange:    CoerceInt(d.ChangeInOpenInterest, 0),
		Volume:      CoerceInt(d.TotalTradedVolume, 0),
		Delta:       g.Delta,
		Gamma:       g.Gamma,
		Theta:       g.Theta,
		Vega:        g.Vega,
	}
}

// timestamp localises the payload timestamp to the exchange zone. A missing
// timestamp means "now".
func (p *Parser) timestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return p.now().In(p.opts.Location), true
	}
	ts, err := time.ParseInLocation(domain.TimestampLayout, s, p.opts.Location)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// underlyingValue prefers the top-level value and falls back to the first
// entry's call side, then put side.
func underlyingValue(rec *domain.RawRecords) float64 {
	if v := CoerceFloat(rec.UnderlyingValue, 0); v > 0 {
		return v
	}
	if len(rec.Data) == 0 {
		return 0
	}
	first := rec.Data[0]
	if first.CE != nil {
		if v := CoerceFloat(first.CE.UnderlyingValue, 0); v > 0 {
			return v
		}
	}
	if first.PE != nil {
		if v := CoerceFloat(first.PE.UnderlyingValue, 0); v > 0 {
			return v
		}
	}
	return 0
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
