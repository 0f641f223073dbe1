package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/service"
)

// PreferenceSetter reads and changes the acquisition provider preference.
type PreferenceSetter interface {
	Preference() domain.Preference
	SetPreference(p domain.Preference) error
}

// Ingester runs an on-demand ingestion and lists archived payloads.
type Ingester interface {
	Ingest(ctx context.Context, symbol string) (service.IngestResult, error)
	Archives(ctx context.Context, symbol string, day time.Time) ([]domain.BlobInfo, error)
	OpenArchive(ctx context.Context, symbol, path string) (io.ReadCloser, error)
}

// AdminHandler serves administrative endpoints.
type AdminHandler struct {
	prefs    PreferenceSetter
	ingester Ingester
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(prefs PreferenceSetter, ingester Ingester, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{prefs: prefs, ingester: ingester, logger: logger}
}

type preferenceBody struct {
	Preference domain.Preference `json:"preference"`
}

// GetPreference returns the active provider preference.
// GET /api/admin/preference
func (h *AdminHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, preferenceBody{Preference: h.prefs.Preference()})
}

// SetPreference switches the provider preference.
// PUT /api/admin/preference
func (h *AdminHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preference string `json:"preference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	p, err := domain.ParsePreference(body.Preference)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.prefs.SetPreference(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Preference: h.prefs.Preference()})
}

// TriggerIngest ingests a symbol synchronously and returns the result.
// POST /api/admin/ingest/{symbol}
func (h *AdminHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	res, err := h.ingester.Ingest(r.Context(), symbolParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "ingest", err)
		return
	}
	status := http.StatusOK
	if res.Skipped {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// ListArchives lists the archived raw payloads of a symbol for one day
// (?date=2006-01-02, default today UTC).
// GET /api/admin/archives/{symbol}
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	symbol := symbolParam(r)
	blobs, err := h.ingester.Archives(r.Context(), symbol, day)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}
	if blobs == nil {
		blobs = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"date":     day.Format(time.DateOnly),
		"archives": blobs,
	})
}

// GetArchive streams one archived object (?path= as returned by
// ListArchives).
// GET /api/admin/archives/{symbol}/object
func (h *AdminHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	body, err := h.ingester.OpenArchive(r.Context(), symbolParam(r), path)
	if err != nil {
		writeServiceError(w, r, h.logger, "open archive", err)
		return
	}
	defer body.Close()

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(path, ".gz"):
		contentType = "application/gzip"
	case strings.HasSuffix(path, ".jsonl"):
		contentType = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "stream archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
