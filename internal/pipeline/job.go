package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/service"
)

// Ingester stores a fresh snapshot for a symbol.
type Ingester interface {
	Ingest(ctx context.Context, symbol string) (service.IngestResult, error)
}

// AlertEvaluator evaluates the alert rules against a symbol's snapshot.
type AlertEvaluator interface {
	EvaluateSymbol(ctx context.Context, symbol string) ([]domain.AlertEvent, error)
}

// IngestJob ingests a symbol and, when a new snapshot was stored, evaluates
// its alerts.
type IngestJob struct {
	ingester Ingester
	alerts   AlertEvaluator
	logger   *slog.Logger
}

// NewIngestJob creates an IngestJob. alerts may be nil.
func NewIngestJob(ingester Ingester, alerts AlertEvaluator, logger *slog.Logger) *IngestJob {
	return &IngestJob{ingester: ingester, alerts: alerts, logger: logger}
}

func (j *IngestJob) Run(ctx context.Context, symbol string) error {
	res, err := j.ingester.Ingest(ctx, symbol)
	if err != nil {
		return err
	}
	if res.Skipped || j.alerts == nil {
		return nil
	}
	if _, err := j.alerts.EvaluateSymbol(ctx, symbol); err != nil && !errors.Is(err, domain.ErrNotReady) {
		j.logger.WarnContext(ctx, "alert evaluation failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
