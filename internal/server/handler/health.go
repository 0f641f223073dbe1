package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// SymbolLister reports which symbols hold a snapshot.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// ClientCounter reports connected streaming clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	store     SymbolLister
	clients   ClientCounter
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. clients may be nil when no
// WebSocket hub runs.
func NewHealthHandler(store SymbolLister, clients ClientCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, clients: clients, startedAt: time.Now().UTC(), logger: logger}
}

// HealthCheck responds with process liveness and the symbols that are ready
// to serve.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.clients != nil {
		resp["ws_clients"] = h.clients.ClientCount()
	}
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: health store check failed",
			slog.String("error", err.Error()),
		)
		resp["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["symbols"] = symbols
	writeJSON(w, http.StatusOK, resp)
}
