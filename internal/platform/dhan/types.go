package dhan

// --------------------------------------------------------------------------
// Dhan v2 API DTOs
// --------------------------------------------------------------------------

// chainRequest is the body of POST /optionchain and POST /optionchain/expirylist.
type chainRequest struct {
	UnderlyingScrip int64  `json:"UnderlyingScrip"`
	UnderlyingSeg   string `json:"UnderlyingSeg"`
	Expiry          string `json:"Expiry,omitempty"`
}

// expiryListResponse is returned by POST /optionchain/expirylist.
// Expiries are formatted as YYYY-MM-DD.
type expiryListResponse struct {
	Data   []string `json:"data"`
	Status string   `json:"status"`
}

// chainResponse is returned by POST /optionchain.
type chainResponse struct {
	Data   chainData `json:"data"`
	Status string    `json:"status"`
}

type chainData struct {
	LastPrice float64 `json:"last_price"`
	// OC is keyed by the strike rendered as a decimal string ("19500.000000").
	OC map[string]strikeSides `json:"oc"`
}

type strikeSides struct {
	CE *sideQuote `json:"ce,omitempty"`
	PE *sideQuote `json:"pe,omitempty"`
}

type sideQuote struct {
	ImpliedVolatility float64 `json:"implied_volatility"`
	LastPrice         float64 `json:"last_price"`
	OI                int64   `json:"oi"`
	PreviousOI        int64   `json:"previous_oi"`
	Volume            int64   `json:"volume"`
}

// Instrument is one entry of the instrument directory.
type Instrument struct {
	Symbol        string `json:"symbol"`
	TradingSymbol string `json:"tradingsymbol"`
	ID            int64  `json:"id"`
	SecurityID    int64  `json:"security_id"`
}

// key returns the symbol the instrument is looked up by.
func (i Instrument) key() string {
	if i.Symbol != "" {
		return i.Symbol
	}
	return i.TradingSymbol
}

// securityID returns whichever identifier the directory populated.
func (i Instrument) securityID() int64 {
	if i.ID != 0 {
		return i.ID
	}
	return i.SecurityID
}

// apiError is the error envelope Dhan returns on 4xx/5xx.
type apiError struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
