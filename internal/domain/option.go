package domain

import (
	"strings"
	"time"
)

// OptionType is the side of an option leg.
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// ParseOptionType accepts both the canonical names and the exchange codes
// (CE / PE) used by upstream payloads.
func ParseOptionType(s string) (OptionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE", "C":
		return OptionTypeCall, true
	case "PUT", "PE", "P":
		return OptionTypePut, true
	default:
		return "", false
	}
}

// UnderlyingQuote is the latest spot value for a tracked symbol. There is one
// row per symbol; each successful ingestion overwrites it.
type UnderlyingQuote struct {
	Symbol    string    `json:"symbol"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// OptionLeg is one side (call or put) of one strike/expiry in a chain,
// together with the Greeks computed at ingestion time.
//
// Identity: (Timestamp, Symbol, StrikePrice, OptionType, ExpiryDate).
type OptionLeg struct {
	Timestamp   time.Time  `json:"timestamp"`
	Symbol      string     `json:"symbol"`
	ExpiryDate  time.Time  `json:"expiry_date"`
	StrikePrice float64    `json:"strike_price"`
	OptionType  OptionType `json:"option_type"`
	LastPrice   float64    `json:"last_price"`
	IV          float64    `json:"iv"`
	OI          int64      `json:"oi"`
	OIChange    int64      `json:"oi_change"`
	Volume      int64      `json:"volume"`
	Delta       float64    `json:"delta"`
	Gamma       float64    `json:"gamma"`
	Theta       float64    `json:"theta"`
	Vega        float64    `json:"vega"`
}

// LegKey is the identity tuple of an OptionLeg.
type LegKey struct {
	Timestamp   int64
	Symbol      string
	StrikePrice float64
	OptionType  OptionType
	ExpiryDate  string
}

// Key returns the identity tuple of the leg.
func (l OptionLeg) Key() LegKey {
	return LegKey{
		Timestamp:   l.Timestamp.UnixNano(),
		Symbol:      l.Symbol,
		StrikePrice: l.StrikePrice,
		OptionType:  l.OptionType,
		ExpiryDate:  l.ExpiryDate.Format(time.DateOnly),
	}
}

// Snapshot is the authoritative current view of one symbol: its quote plus
// every leg sharing the quote's ingestion timestamp.
type Snapshot struct {
	Quote UnderlyingQuote `json:"quote"`
	Legs  []OptionLeg     `json:"legs"`
}

// NearestExpiry returns the earliest expiry present in the snapshot, or the
// zero time when there are no legs.
func (s Snapshot) NearestExpiry() time.Time {
	var nearest time.Time
	for _, l := range s.Legs {
		if nearest.IsZero() || l.ExpiryDate.Before(nearest) {
			nearest = l.ExpiryDate
		}
	}
	return nearest
}

// ChainView is the read model served to API consumers.
type ChainView struct {
	Symbol          string      `json:"symbol"`
	UnderlyingPrice float64     `json:"underlying_price"`
	Timestamp       time.Time   `json:"timestamp"`
	ExpiryDate      string      `json:"expiry_date"`
	Legs            []OptionLeg `json:"legs"`
}

// View converts the snapshot into its API read model.
func (s Snapshot) View() ChainView {
	v := ChainView{
		Symbol:          s.Quote.Symbol,
		UnderlyingPrice: s.Quote.Value,
		Timestamp:       s.Quote.Timestamp,
		Legs:            s.Legs,
	}
	if exp := s.NearestExpiry(); !exp.IsZero() {
		v.ExpiryDate = exp.Format(time.DateOnly)
	}
	return v
}

// DedupeLegs drops legs sharing an identity with a later leg, keeping the
// last occurrence and the original order otherwise.
func DedupeLegs(legs []OptionLeg) []OptionLeg {
	last := make(map[LegKey]int, len(legs))
	for i, l := range legs {
		last[l.Key()] = i
	}
	if len(last) == len(legs) {
		return legs
	}
	out := make([]OptionLeg, 0, len(last))
	for i, l := range legs {
		if last[l.Key()] == i {
			out = append(out, l)
		}
	}
	return out
}
