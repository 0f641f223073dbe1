package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Analytics defines the read-side queries the chain handler serves. It is
// declared locally so the handler package does not depend on the concrete
// analytics engine.
type Analytics interface {
	Chain(ctx context.Context, symbol string) (domain.ChainView, error)
	KeyLevels(ctx context.Context, symbol string) (domain.KeyLevels, error)
	MaxPain(ctx context.Context, symbol string) (domain.MaxPain, error)
	VolatilitySpread(ctx context.Context, symbol string) (domain.VolatilitySpread, error)
	PriceHistory(ctx context.Context, symbol string) ([]domain.PricePoint, error)
}

// ChainHandler serves option-chain analytics endpoints.
type ChainHandler struct {
	analytics Analytics
	logger    *slog.Logger
}

// NewChainHandler creates a ChainHandler.
func NewChainHandler(analytics Analytics, logger *slog.Logger) *ChainHandler {
	return &ChainHandler{analytics: analytics, logger: logger}
}

// GetChain returns the latest snapshot of a symbol.
// GET /api/chains/{symbol}
func (h *ChainHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	v, err := h.analytics.Chain(r.Context(), symbolParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "get chain", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetKeyLevels returns PCR and max-OI strikes.
// GET /api/chains/{symbol}/key-levels
func (h *ChainHandler) GetKeyLevels(w http.ResponseWriter, r *http.Request) {
	kl, err := h.analytics.KeyLevels(r.Context(), symbolParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "key levels", err)
		return
	}
	writeJSON(w, http.StatusOK, kl)
}

// GetMaxPain returns the max-pain strike.
// GET /api/chains/{symbol}/max-pain
func (h *ChainHandler) GetMaxPain(w http.ResponseWriter, r *http.Request) {
	mp, err := h.analytics.MaxPain(r.Context(), symbolParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "max pain", err)
		return
	}
	writeJSON(w, http.StatusOK, mp)
}

// GetVolatility returns implied vs realized volatility.
// GET /api/chains/{symbol}/volatility
func (h *ChainHandler) GetVolatility(w http.ResponseWriter, r *http.Request) {
	vs, err := h.analytics.VolatilitySpread(r.Context(), symbolParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "volatility", err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

// GetHistory returns recent daily closes for charting.
// GET /api/chains/{symbol}/history
func (h *ChainHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	points, err := h.analytics.PriceHistory(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"points": points,
	})
}
