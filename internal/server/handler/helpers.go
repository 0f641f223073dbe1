package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/chainpulse/internal/acquisition"
	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a core error onto an HTTP status code.
func statusFor(err error) int {
	var acqErr *acquisition.AcquisitionError
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &acqErr), errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs unexpected failures and writes the mapped status.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, err.Error())
}

// symbolParam extracts the {symbol} path parameter in canonical upper case.
func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
}
