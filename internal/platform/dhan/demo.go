package dhan

import (
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// demoInstruments is served as the directory when no credentials are set.
var demoInstruments = []Instrument{
	{Symbol: "NIFTY", ID: 999990},
	{Symbol: "BANKNIFTY", ID: 999991},
	{Symbol: "FINNIFTY", ID: 999992},
	{Symbol: "RELIANCE", ID: 500101},
	{Symbol: "TCS", ID: 500102},
}

const demoUnderlying = 19500.0

// demoChain builds a small deterministic chain expiring today so the rest of
// the pipeline can run without upstream access.
func demoChain(now time.Time) *domain.RawChain {
	expiry := now.Format(domain.ExpiryLayout)

	side := func(lp float64, oi, chg, vol int64, iv float64) *domain.RawSide {
		return &domain.RawSide{
			LastPrice:            lp,
			OpenInterest:         oi,
			ChangeInOpenInterest: chg,
			TotalTradedVolume:    vol,
			ImpliedVolatility:    iv,
			UnderlyingValue:      demoUnderlying,
		}
	}

	return &domain.RawChain{
		Source: "demo",
		Records: &domain.RawRecords{
			UnderlyingValue: demoUnderlying,
			Timestamp:       now.Format(domain.TimestampLayout),
			ExpiryDates:     []string{expiry},
			Data: []domain.RawEntry{
				{
					StrikePrice: 19400.0,
					ExpiryDate:  expiry,
					CE:          side(120, 1500, 50, 200, 18.5),
					PE:          side(80, 2000, -30, 180, 20.1),
				},
				{
					StrikePrice: 19500.0,
					ExpiryDate:  expiry,
					CE:          side(90, 5000, 300, 420, 17.2),
					PE:          side(110, 4800, -120, 390, 19.3),
				},
				{
					StrikePrice: 19600.0,
					ExpiryDate:  expiry,
					CE:          side(60, 900, -20, 100, 16.8),
					PE:          side(140, 400, 10, 60, 21.0),
				},
			},
		},
	}
}
