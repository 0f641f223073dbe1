package domain

import "time"

// KeyLevels summarises open-interest positioning for a snapshot.
type KeyLevels struct {
	Symbol          string  `json:"symbol"`
	PCR             float64 `json:"pcr"`
	MaxOICallStrike float64 `json:"max_oi_call_strike"`
	MaxOIPutStrike  float64 `json:"max_oi_put_strike"`
	TotalCallOI     int64   `json:"total_call_oi"`
	TotalPutOI      int64   `json:"total_put_oi"`
}

// MaxPain is the strike minimising aggregate option-writer payout at expiry.
type MaxPain struct {
	Symbol string  `json:"symbol"`
	Strike float64 `json:"max_pain_strike"`
	Cost   float64 `json:"cost"`
}

// VolatilitySpread compares implied with realized volatility, both in percent.
type VolatilitySpread struct {
	Symbol string  `json:"symbol"`
	IV     float64 `json:"iv"`
	RV     float64 `json:"rv"`
	Spread float64 `json:"spread"`
}

// Bar is one OHLCV bar of a price history.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PricePoint is a chart-friendly close price.
type PricePoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}
