// Package analytics derives positioning and volatility metrics from the
// latest stored snapshot of a symbol.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

const (
	realizedWindow  = 35 * 24 * time.Hour
	realizedReturns = 30
	tradingDays     = 252
	chartWindow     = 30 * 24 * time.Hour
	changeWindow    = 7 * 24 * time.Hour
	chartTimeLayout = "Jan 02"
)

// PriceHistory resolves a symbol to a history ticker and returns its daily
// bars. The yahoo client satisfies it.
type PriceHistory interface {
	Ticker(symbol string) (string, bool)
	History(ctx context.Context, ticker string, period time.Duration) ([]domain.Bar, error)
}

// Engine computes analytics over the snapshot store.
type Engine struct {
	store   domain.SnapshotStore
	history PriceHistory
	logger  *slog.Logger
}

// NewEngine creates an Engine. history may be nil, in which case realized
// volatility is always 0 and price history is unavailable.
func NewEngine(store domain.SnapshotStore, history PriceHistory, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		history: history,
		logger:  logger.With(slog.String("component", "analytics")),
	}
}

// Chain returns the read model of the latest snapshot.
func (e *Engine) Chain(ctx context.Context, symbol string) (domain.ChainView, error) {
	snap, err := e.latest(ctx, symbol)
	if err != nil {
		return domain.ChainView{}, err
	}
	return snap.View(), nil
}

// KeyLevels returns PCR and the max-OI strikes of the latest snapshot.
func (e *Engine) KeyLevels(ctx context.Context, symbol string) (domain.KeyLevels, error) {
	snap, err := e.latest(ctx, symbol)
	if err != nil {
		return domain.KeyLevels{}, err
	}
	return ComputeKeyLevels(snap.Quote.Symbol, snap.Legs), nil
}

// MaxPain returns the max-pain strike of the latest snapshot.
func (e *Engine) MaxPain(ctx context.Context, symbol string) (domain.MaxPain, error) {
	snap, err := e.latest(ctx, symbol)
	if err != nil {
		return domain.MaxPain{}, err
	}
	return ComputeMaxPain(snap.Quote.Symbol, snap.Legs), nil
}

// ImpliedVolatility returns the mean IV of the quoted legs, in percent.
func (e *Engine) ImpliedVolatility(ctx context.Context, symbol string) (float64, error) {
	snap, err := e.latest(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return AverageIV(snap.Legs), nil
}

// RealizedVolatility returns the annualised 30-day realized volatility of
// the symbol's history ticker, in percent. Symbols without a ticker yield 0.
func (e *Engine) RealizedVolatility(ctx context.Context, symbol string) (float64, error) {
	ticker, ok := e.ticker(symbol)
	if !ok {
		return 0, nil
	}
	bars, err := e.history.History(ctx, ticker, realizedWindow)
	if err != nil {
		return 0, fmt.Errorf("analytics: realized volatility %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		e.logger.Warn("no price history", slog.String("symbol", symbol), slog.String("ticker", ticker))
		return 0, nil
	}
	return RealizedVol(closes(bars)), nil
}

// VolatilitySpread returns implied minus realized volatility.
func (e *Engine) VolatilitySpread(ctx context.Context, symbol string) (domain.VolatilitySpread, error) {
	iv, err := e.ImpliedVolatility(ctx, symbol)
	if err != nil {
		return domain.VolatilitySpread{}, err
	}
	rv, err := e.RealizedVolatility(ctx, symbol)
	if err != nil {
		return domain.VolatilitySpread{}, err
	}
	return domain.VolatilitySpread{
		Symbol: strings.ToUpper(symbol),
		IV:     iv,
		RV:     rv,
		Spread: round(iv-rv, 2),
	}, nil
}

// PriceHistory returns 30 days of closes formatted for charting. Symbols
// without a ticker return domain.ErrNotFound.
func (e *Engine) PriceHistory(ctx context.Context, symbol string) ([]domain.PricePoint, error) {
	ticker, ok := e.ticker(symbol)
	if !ok {
		return nil, fmt.Errorf("analytics: price history %s: %w", symbol, domain.ErrNotFound)
	}
	bars, err := e.history.History(ctx, ticker, chartWindow)
	if err != nil {
		return nil, fmt.Errorf("analytics: price history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("analytics: price history %s: %w", symbol, domain.ErrNotFound)
	}
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.PricePoint{
			Time:  b.Time.Format(chartTimeLayout),
			Price: round(b.Close, 2),
		})
	}
	return points, nil
}

// DayChangePct returns the percentage move of the last close over the one
// before it. ok is false when there is no ticker or fewer than two closes.
func (e *Engine) DayChangePct(ctx context.Context, symbol string) (pct float64, ok bool, err error) {
	ticker, found := e.ticker(symbol)
	if !found {
		return 0, false, nil
	}
	bars, err := e.history.History(ctx, ticker, changeWindow)
	if err != nil {
		return 0, false, fmt.Errorf("analytics: day change %s: %w", symbol, err)
	}
	c := closes(bars)
	if len(c) < 2 || c[len(c)-2] <= 0 {
		return 0, false, nil
	}
	prev, last := c[len(c)-2], c[len(c)-1]
	return round((last-prev)/prev*100, 2), true, nil
}

func (e *Engine) latest(ctx context.Context, symbol string) (domain.Snapshot, error) {
	snap, err := e.store.Latest(ctx, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{}, fmt.Errorf("analytics: load %s: %w", symbol, err)
	}
	return snap, nil
}

func (e *Engine) ticker(symbol string) (string, bool) {
	if e.history == nil {
		return "", false
	}
	return e.history.Ticker(strings.ToUpper(symbol))
}

// ComputeKeyLevels aggregates OI per side. PCR is 0 when there is no call
// OI. Max-OI strikes are taken over OI summed across expiries, lowest strike
// first on ties.
func ComputeKeyLevels(symbol string, legs []domain.OptionLeg) domain.KeyLevels {
	kl := domain.KeyLevels{Symbol: symbol}
	callOI := make(map[float64]int64)
	putOI := make(map[float64]int64)
	for _, l := range legs {
		switch l.OptionType {
		case domain.OptionTypeCall:
			kl.TotalCallOI += l.OI
			callOI[l.StrikePrice] += l.OI
		case domain.OptionTypePut:
			kl.TotalPutOI += l.OI
			putOI[l.StrikePrice] += l.OI
		}
	}
	if kl.TotalCallOI > 0 {
		kl.PCR = round(float64(kl.TotalPutOI)/float64(kl.TotalCallOI), 2)
	}
	kl.MaxOICallStrike = maxOIStrike(callOI)
	kl.MaxOIPutStrike = maxOIStrike(putOI)
	return kl
}

func maxOIStrike(byStrike map[float64]int64) float64 {
	strikes := sortedKeys(byStrike)
	var (
		best   float64
		bestOI int64 = -1
	)
	for _, k := range strikes {
		if byStrike[k] > bestOI {
			best, bestOI = k, byStrike[k]
		}
	}
	return best
}

// ComputeMaxPain evaluates the writers' payout at every distinct strike and
// returns the cheapest, lowest strike first on ties. No legs yields zeros.
func ComputeMaxPain(symbol string, legs []domain.OptionLeg) domain.MaxPain {
	seen := make(map[float64]struct{}, len(legs))
	for _, l := range legs {
		seen[l.StrikePrice] = struct{}{}
	}
	strikes := sortedKeys(seen)

	mp := domain.MaxPain{Symbol: symbol}
	for i, settle := range strikes {
		var cost float64
		for _, l := range legs {
			oi := float64(l.OI)
			switch l.OptionType {
			case domain.OptionTypeCall:
				cost += math.Max(0, settle-l.StrikePrice) * oi
			case domain.OptionTypePut:
				cost += math.Max(0, l.StrikePrice-settle) * oi
			}
		}
		if i == 0 || cost < mp.Cost {
			mp.Strike, mp.Cost = settle, cost
		}
	}
	return mp
}

// AverageIV is the mean IV over legs with a positive IV, rounded to 2dp.
func AverageIV(legs []domain.OptionLeg) float64 {
	var (
		sum float64
		n   int
	)
	for _, l := range legs {
		if l.IV > 0 {
			sum += l.IV
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round(sum/float64(n), 2)
}

// RealizedVol annualises the sample standard deviation of the last 30 daily
// log returns of closes, in percent rounded to 2dp. Fewer than two returns
// yields 0.
func RealizedVol(closes []float64) float64 {
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) > realizedReturns {
		returns = returns[len(returns)-realizedReturns:]
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	return round(std*math.Sqrt(tradingDays)*100, 2)
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.Close)
	}
	return out
}

func sortedKeys[V any](m map[float64]V) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
