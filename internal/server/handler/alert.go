package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// AlertService defines what the alert handler needs from the service layer.
type AlertService interface {
	EvaluateSymbol(ctx context.Context, symbol string) ([]domain.AlertEvent, error)
	Evaluate(ctx context.Context, sig domain.AlertSignal) []domain.AlertEvent
	Recent(symbol string) []domain.AlertEvent
}

// AlertHandler serves alert endpoints.
type AlertHandler struct {
	alerts AlertService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

type alertsResponse struct {
	Symbol string              `json:"symbol"`
	Alerts []domain.AlertEvent `json:"alerts"`
}

// ListRecent returns the alerts of the symbol's last evaluation.
// GET /api/alerts/{symbol}
func (h *AlertHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	writeJSON(w, http.StatusOK, alertsResponse{Symbol: symbol, Alerts: h.alerts.Recent(symbol)})
}

// EvaluateSymbol evaluates the rules against the stored snapshot of a symbol.
// POST /api/alerts/{symbol}/evaluate
func (h *AlertHandler) EvaluateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	events, err := h.alerts.EvaluateSymbol(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, "evaluate alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse{Symbol: symbol, Alerts: nonNil(events)})
}

// EvaluateSignal evaluates a caller-supplied signal, letting external
// producers feed buzz and sentiment scores.
// POST /api/alerts/evaluate
func (h *AlertHandler) EvaluateSignal(w http.ResponseWriter, r *http.Request) {
	var sig domain.AlertSignal
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid signal: "+err.Error())
		return
	}
	sig.Symbol = strings.ToUpper(strings.TrimSpace(sig.Symbol))
	if sig.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	events := h.alerts.Evaluate(r.Context(), sig)
	writeJSON(w, http.StatusOK, alertsResponse{Symbol: sig.Symbol, Alerts: nonNil(events)})
}

func nonNil(events []domain.AlertEvent) []domain.AlertEvent {
	if events == nil {
		return []domain.AlertEvent{}
	}
	return events
}
