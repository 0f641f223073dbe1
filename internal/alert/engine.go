// Package alert turns scalar market signals into alert events. Evaluation is
// a pure function of the signal.
package alert

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Rule names.
const (
	RuleCallHeavyOI       = "CALL_HEAVY_OPEN_INTEREST"
	RulePutHeavyOI        = "PUT_HEAVY_OPEN_INTEREST"
	RuleExtremeBearishPCR = "EXTREME_BEARISH_PCR"
	RuleExtremeBullishPCR = "EXTREME_BULLISH_PCR"
	RuleRichPremiums      = "RICH_OPTION_PREMIUMS"
	RuleCheapPremiums     = "CHEAP_OPTION_PREMIUMS"
	RuleExtremeBuzz       = "EXTREME_SOCIAL_BUZZ"
	RuleBullishSentiment  = "OVERWHELMING_BULLISH_SOCIAL_SENTIMENT"
	RuleBearishSentiment  = "OVERWHELMING_BEARISH_SOCIAL_SENTIMENT"
	RuleSharpMoveUp       = "SHARP_PRICE_MOVE_UP"
	RuleSharpMoveDown     = "SHARP_PRICE_MOVE_DOWN"
)

// Thresholds.
const (
	OIShareThreshold   = 0.70
	BearishPCR         = 1.5
	BullishPCR         = 0.6
	VolSpreadThreshold = 10.0
	BuzzThreshold      = 80
	SentimentThreshold = 0.6
	PriceMoveThreshold = 3.0
)

type rule func(s domain.AlertSignal) *domain.AlertEvent

var rules = []rule{
	openInterestRule,
	pcrRule,
	volSpreadRule,
	buzzRule,
	sentimentRule,
	priceMoveRule,
}

// Engine evaluates the rule table.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine { return &Engine{} }

// Evaluate runs every rule against s. Rules whose inputs are nil are
// skipped; the result is nil when nothing fires.
func (Engine) Evaluate(s domain.AlertSignal) []domain.AlertEvent {
	var events []domain.AlertEvent
	for _, r := range rules {
		if ev := r(s); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func event(s domain.AlertSignal, name string, sev domain.Severity, msg string, meta map[string]any) *domain.AlertEvent {
	return &domain.AlertEvent{
		Symbol:   s.Symbol,
		RuleName: name,
		Severity: sev,
		Message:  msg,
		Metadata: meta,
	}
}

func openInterestRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.TotalCallOI == nil || s.TotalPutOI == nil {
		return nil
	}
	callOI, putOI := *s.TotalCallOI, *s.TotalPutOI
	total := callOI + putOI
	if total <= 0 {
		return nil
	}
	callShare := float64(callOI) / float64(total)
	putShare := float64(putOI) / float64(total)
	meta := map[string]any{
		"call_share":    round(callShare, 3),
		"put_share":     round(putShare, 3),
		"total_call_oi": callOI,
		"total_put_oi":  putOI,
	}
	switch {
	case callShare >= OIShareThreshold:
		return event(s, RuleCallHeavyOI, domain.SeverityHigh,
			"Unusual call-side buildup detected (call OI > 70% of total).", meta)
	case putShare >= OIShareThreshold:
		return event(s, RulePutHeavyOI, domain.SeverityHigh,
			"Unusual put-side buildup detected (put OI > 70% of total).", meta)
	}
	return nil
}

func pcrRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.PCR == nil {
		return nil
	}
	pcr := *s.PCR
	meta := map[string]any{"pcr": round(pcr, 2)}
	switch {
	case pcr >= BearishPCR:
		return event(s, RuleExtremeBearishPCR, domain.SeverityMedium,
			"High Put-Call Ratio suggests bearish positioning.", meta)
	case pcr <= BullishPCR:
		return event(s, RuleExtremeBullishPCR, domain.SeverityMedium,
			"Low Put-Call Ratio suggests bullish positioning.", meta)
	}
	return nil
}

func volSpreadRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.IV == nil || s.RV == nil {
		return nil
	}
	spread := *s.IV - *s.RV
	meta := map[string]any{
		"iv":     round(*s.IV, 2),
		"rv":     round(*s.RV, 2),
		"spread": round(spread, 2),
	}
	switch {
	case spread >= VolSpreadThreshold:
		return event(s, RuleRichPremiums, domain.SeverityMedium,
			"Implied volatility significantly above realized volatility.", meta)
	case spread <= -VolSpreadThreshold:
		return event(s, RuleCheapPremiums, domain.SeverityMedium,
			"Implied volatility significantly below realized volatility.", meta)
	}
	return nil
}

func buzzRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.SocialBuzzScore == nil || *s.SocialBuzzScore < BuzzThreshold {
		return nil
	}
	return event(s, RuleExtremeBuzz, domain.SeverityHigh,
		"Unusual spike in social buzz detected.",
		map[string]any{"buzz_score": *s.SocialBuzzScore})
}

func sentimentRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.SocialSentimentScore == nil {
		return nil
	}
	score := *s.SocialSentimentScore
	meta := map[string]any{"sentiment_score": round(score, 3)}
	switch {
	case score >= SentimentThreshold:
		return event(s, RuleBullishSentiment, domain.SeverityLow,
			"Social sentiment is strongly bullish.", meta)
	case score <= -SentimentThreshold:
		return event(s, RuleBearishSentiment, domain.SeverityLow,
			"Social sentiment is strongly bearish.", meta)
	}
	return nil
}

func priceMoveRule(s domain.AlertSignal) *domain.AlertEvent {
	if s.PriceChangePct == nil {
		return nil
	}
	pct := *s.PriceChangePct
	meta := map[string]any{"price_change_pct": round(pct, 2)}
	switch {
	case pct >= PriceMoveThreshold:
		return event(s, RuleSharpMoveUp, domain.SeverityHigh,
			"Price up-move greater than 3%.", meta)
	case pct <= -PriceMoveThreshold:
		return event(s, RuleSharpMoveDown, domain.SeverityHigh,
			"Price down-move greater than 3%.", meta)
	}
	return nil
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
