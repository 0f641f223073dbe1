package domain

import "strings"

// Severity grades an AlertEvent.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AlertSignal bundles the scalar inputs of the alert rules. Every field is
// optional; a nil field disables the rules that need it.
type AlertSignal struct {
	Symbol               string   `json:"symbol"`
	PCR                  *float64 `json:"pcr,omitempty"`
	TotalCallOI          *int64   `json:"total_call_oi,omitempty"`
	TotalPutOI           *int64   `json:"total_put_oi,omitempty"`
	PriceChangePct       *float64 `json:"price_change_pct,omitempty"`
	IV                   *float64 `json:"iv,omitempty"`
	RV                   *float64 `json:"rv,omitempty"`
	SocialBuzzScore      *int     `json:"social_buzz_score,omitempty"`
	SocialSentimentScore *float64 `json:"social_sentiment_score,omitempty"` // -1 to 1
}

// AlertEvent is a fired rule. Metadata carries the triggering metrics.
type AlertEvent struct {
	ID       string         `json:"id,omitempty"`
	Symbol   string         `json:"symbol"`
	RuleName string         `json:"rule_name"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

// Rank orders severities from LOW (1) to CRITICAL (4); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverity normalises s into a Severity.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	return sev, sev.Rank() > 0
}
