package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/metrics"
)

// SignalSource supplies the analytics that feed an AlertSignal.
type SignalSource interface {
	KeyLevels(ctx context.Context, symbol string) (domain.KeyLevels, error)
	VolatilitySpread(ctx context.Context, symbol string) (domain.VolatilitySpread, error)
	DayChangePct(ctx context.Context, symbol string) (float64, bool, error)
}

// Evaluator is the pure rule engine.
type Evaluator interface {
	Evaluate(s domain.AlertSignal) []domain.AlertEvent
}

// AlertNotifier delivers a fired alert to humans.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, ev domain.AlertEvent) error
}

// AlertDeduper reports whether an alert key was already delivered recently.
type AlertDeduper interface {
	IsDuplicate(key string) bool
}

// AlertService assembles signals from stored snapshots, evaluates them and
// fans the resulting events out.
type AlertService struct {
	source   SignalSource
	engine   Evaluator
	bus      domain.SignalBus
	notifier AlertNotifier
	cooldown AlertDeduper
	logger   *slog.Logger

	mu     sync.RWMutex
	recent map[string][]domain.AlertEvent
}

// AlertDeps groups the optional collaborators of AlertService. Nil fields
// disable the corresponding step.
type AlertDeps struct {
	Bus      domain.SignalBus
	Notifier AlertNotifier
	// Cooldown gates notifier delivery per (symbol, rule). Bus publishing is
	// never gated.
	Cooldown AlertDeduper
}

// NewAlertService creates an AlertService.
func NewAlertService(source SignalSource, engine Evaluator, deps AlertDeps, logger *slog.Logger) *AlertService {
	return &AlertService{
		source:   source,
		engine:   engine,
		bus:      deps.Bus,
		notifier: deps.Notifier,
		cooldown: deps.Cooldown,
		logger:   logger.With(slog.String("component", "alerts")),
		recent:   make(map[string][]domain.AlertEvent),
	}
}

// BuildSignal derives an AlertSignal from the latest snapshot of symbol.
// Volatility and price-change inputs are left nil when their upstream is
// unavailable, which disables the rules that need them.
func (s *AlertService) BuildSignal(ctx context.Context, symbol string) (domain.AlertSignal, error) {
	symbol = strings.ToUpper(symbol)
	kl, err := s.source.KeyLevels(ctx, symbol)
	if err != nil {
		return domain.AlertSignal{}, fmt.Errorf("alerts: signal %s: %w", symbol, err)
	}
	sig := domain.AlertSignal{
		Symbol:      symbol,
		PCR:         &kl.PCR,
		TotalCallOI: &kl.TotalCallOI,
		TotalPutOI:  &kl.TotalPutOI,
	}

	if vs, err := s.source.VolatilitySpread(ctx, symbol); err != nil {
		s.logger.WarnContext(ctx, "volatility unavailable",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	} else if vs.RV > 0 {
		sig.IV, sig.RV = &vs.IV, &vs.RV
	}

	if pct, ok, err := s.source.DayChangePct(ctx, symbol); err != nil {
		s.logger.WarnContext(ctx, "price change unavailable",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	} else if ok {
		sig.PriceChangePct = &pct
	}
	return sig, nil
}

// EvaluateSymbol builds the signal for symbol and evaluates it.
func (s *AlertService) EvaluateSymbol(ctx context.Context, symbol string) ([]domain.AlertEvent, error) {
	sig, err := s.BuildSignal(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, sig), nil
}

// Evaluate runs the rules over sig, stamps event IDs, remembers the result
// as the symbol's latest alerts and dispatches every event.
func (s *AlertService) Evaluate(ctx context.Context, sig domain.AlertSignal) []domain.AlertEvent {
	sig.Symbol = strings.ToUpper(sig.Symbol)
	events := s.engine.Evaluate(sig)
	for i := range events {
		events[i].ID = uuid.NewString()
	}

	s.mu.Lock()
	s.recent[sig.Symbol] = events
	s.mu.Unlock()

	for _, ev := range events {
		metrics.RecordAlert(ev.RuleName, string(ev.Severity))
		s.logger.InfoContext(ctx, "alert fired",
			slog.String("symbol", ev.Symbol),
			slog.String("rule", ev.RuleName),
			slog.String("severity", string(ev.Severity)),
		)
		s.dispatch(ctx, ev)
	}
	return events
}

func (s *AlertService) dispatch(ctx context.Context, ev domain.AlertEvent) {
	if s.bus != nil {
		payload, _ := json.Marshal(ev)
		if err := s.bus.Publish(ctx, domain.ChannelAlerts, payload); err != nil {
			s.logger.WarnContext(ctx, "publish alert failed",
				slog.String("rule", ev.RuleName),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.notifier == nil {
		return
	}
	if s.cooldown != nil && s.cooldown.IsDuplicate(alertKey(ev)) {
		s.logger.DebugContext(ctx, "alert notification suppressed",
			slog.String("symbol", ev.Symbol),
			slog.String("rule", ev.RuleName),
		)
		return
	}
	if err := s.notifier.NotifyAlert(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "notify alert failed",
			slog.String("rule", ev.RuleName),
			slog.String("error", err.Error()),
		)
	}
}

func alertKey(ev domain.AlertEvent) string {
	return ev.Symbol + "|" + ev.RuleName
}

// Recent returns the events of the last evaluation of symbol.
func (s *AlertService) Recent(symbol string) []domain.AlertEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.recent[strings.ToUpper(symbol)]
	out := make([]domain.AlertEvent, len(events))
	copy(out, events)
	return out
}
