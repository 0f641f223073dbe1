package domain

import "time"

// RawChain is the provider-neutral option-chain payload handed from the
// acquisition layer to the normalizer. Numeric fields are left untyped
// because upstreams mix numbers, formatted strings and placeholder tokens.
type RawChain struct {
	Records *RawRecords `json:"records"`

	// Source names the provider that produced the payload.
	Source string `json:"-"`
	// Body is the undecoded upstream response, kept for archival.
	Body []byte `json:"-"`
}

// RawRecords is the top-level structure of a chain payload.
type RawRecords struct {
	UnderlyingValue any        `json:"underlyingValue"`
	Timestamp       string     `json:"timestamp"`
	ExpiryDates     []string   `json:"expiryDates,omitempty"`
	Data            []RawEntry `json:"data"`
}

// RawEntry is a single strike/expiry row carrying optional call and put sides.
type RawEntry struct {
	StrikePrice any      `json:"strikePrice"`
	ExpiryDate  string   `json:"expiryDate"`
	CE          *RawSide `json:"CE,omitempty"`
	PE          *RawSide `json:"PE,omitempty"`
}

// RawSide is one option side of a RawEntry.
type RawSide struct {
	LastPrice            any `json:"lastPrice"`
	OpenInterest         any `json:"openInterest"`
	ChangeInOpenInterest any `json:"changeinOpenInterest"`
	TotalTradedVolume    any `json:"totalTradedVolume"`
	ImpliedVolatility    any `json:"impliedVolatility"`
	UnderlyingValue      any `json:"underlyingValue"`
}

// Layouts used by chain payloads for the snapshot timestamp and expiry dates.
const (
	TimestampLayout = "02-Jan-2006 15:04:05"
	ExpiryLayout    = "02-Jan-2006"
)

// DefaultExchangeZone is the zone chain timestamps are expressed in.
const DefaultExchangeZone = "Asia/Kolkata"

// ExchangeLocation loads the named zone, falling back to a fixed +05:30
// offset when the tz database is unavailable.
func ExchangeLocation(name string) *time.Location {
	if name == "" {
		name = DefaultExchangeZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+30*60)
}
