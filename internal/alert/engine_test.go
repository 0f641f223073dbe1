package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func ruleNames(events []domain.AlertEvent) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.RuleName)
	}
	return names
}

func TestEvaluate_EmptySignal(t *testing.T) {
	assert.Empty(t, NewEngine().Evaluate(domain.AlertSignal{Symbol: "NIFTY"}))
}

func TestEvaluate_PCRAndBuzzOnly(t *testing.T) {
	events := NewEngine().Evaluate(domain.AlertSignal{
		Symbol:          "NIFTY",
		PCR:             ptr(1.6),
		TotalCallOI:     ptr(int64(0)),
		TotalPutOI:      ptr(int64(0)),
		SocialBuzzScore: ptr(90),
	})
	require.Len(t, events, 2)

	assert.Equal(t, RuleExtremeBearishPCR, events[0].RuleName)
	assert.Equal(t, domain.SeverityMedium, events[0].Severity)
	assert.Equal(t, map[string]any{"pcr": 1.6}, events[0].Metadata)

	assert.Equal(t, RuleExtremeBuzz, events[1].RuleName)
	assert.Equal(t, domain.SeverityHigh, events[1].Severity)
	assert.Equal(t, map[string]any{"buzz_score": 90}, events[1].Metadata)

	for _, e := range events {
		assert.Equal(t, "NIFTY", e.Symbol)
	}
}

func TestEvaluate_OpenInterestShare(t *testing.T) {
	tests := []struct {
		name      string
		call, put int64
		want      []string
	}{
		{"call heavy at threshold", 70, 30, []string{RuleCallHeavyOI}},
		{"put heavy", 10, 90, []string{RulePutHeavyOI}},
		{"balanced", 50, 50, nil},
		{"just under", 69, 31, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewEngine().Evaluate(domain.AlertSignal{
				Symbol:      "X",
				TotalCallOI: ptr(tt.call),
				TotalPutOI:  ptr(tt.put),
			})
			if tt.want == nil {
				assert.Empty(t, events)
				return
			}
			assert.Equal(t, tt.want, ruleNames(events))
			assert.Equal(t, tt.call, events[0].Metadata["total_call_oi"])
			assert.Equal(t, tt.put, events[0].Metadata["total_put_oi"])
		})
	}
}

func TestEvaluate_OpenInterestNeedsBothSides(t *testing.T) {
	assert.Empty(t, NewEngine().Evaluate(domain.AlertSignal{TotalCallOI: ptr(int64(100))}))
}

func TestEvaluate_OpenInterestMetadataRounded(t *testing.T) {
	events := NewEngine().Evaluate(domain.AlertSignal{
		TotalCallOI: ptr(int64(2)),
		TotalPutOI:  ptr(int64(7)),
	})
	require.Len(t, events, 1)
	assert.Equal(t, 0.222, events[0].Metadata["call_share"])
	assert.Equal(t, 0.778, events[0].Metadata["put_share"])
}

func TestEvaluate_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		signal domain.AlertSignal
		want   []string
	}{
		{"bullish pcr", domain.AlertSignal{PCR: ptr(0.6)}, []string{RuleExtremeBullishPCR}},
		{"neutral pcr", domain.AlertSignal{PCR: ptr(1.0)}, nil},
		{"rich premiums", domain.AlertSignal{IV: ptr(25.0), RV: ptr(15.0)}, []string{RuleRichPremiums}},
		{"cheap premiums", domain.AlertSignal{IV: ptr(10.0), RV: ptr(22.5)}, []string{RuleCheapPremiums}},
		{"iv without rv", domain.AlertSignal{IV: ptr(40.0)}, nil},
		{"buzz below", domain.AlertSignal{SocialBuzzScore: ptr(79)}, nil},
		{"bullish sentiment", domain.AlertSignal{SocialSentimentScore: ptr(0.6)}, []string{RuleBullishSentiment}},
		{"bearish sentiment", domain.AlertSignal{SocialSentimentScore: ptr(-0.75)}, []string{RuleBearishSentiment}},
		{"move up", domain.AlertSignal{PriceChangePct: ptr(3.0)}, []string{RuleSharpMoveUp}},
		{"move down", domain.AlertSignal{PriceChangePct: ptr(-4.2)}, []string{RuleSharpMoveDown}},
		{"small move", domain.AlertSignal{PriceChangePct: ptr(2.99)}, nil},
		{
			"independent rules",
			domain.AlertSignal{PCR: ptr(0.5), PriceChangePct: ptr(5.0), SocialSentimentScore: ptr(0.9)},
			[]string{RuleExtremeBullishPCR, RuleBullishSentiment, RuleSharpMoveUp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewEngine().Evaluate(tt.signal)
			if tt.want == nil {
				assert.Empty(t, events)
				return
			}
			assert.Equal(t, tt.want, ruleNames(events))
		})
	}
}

func TestEvaluate_SpreadMetadata(t *testing.T) {
	events := NewEngine().Evaluate(domain.AlertSignal{IV: ptr(28.456), RV: ptr(14.123)})
	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"iv": 28.46, "rv": 14.12, "spread": 14.33}, events[0].Metadata)
	assert.Equal(t, "Implied volatility significantly above realized volatility.", events[0].Message)
}
