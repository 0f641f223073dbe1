package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/errtrack"
	"github.com/alanyoungcy/chainpulse/internal/metrics"
)

// ChainFetcher acquires a raw chain for a symbol.
type ChainFetcher interface {
	Fetch(ctx context.Context, symbol string) (*domain.RawChain, error)
}

// ChainParser normalizes a raw chain. A nil quote means the payload was
// unusable.
type ChainParser interface {
	Parse(symbol string, raw *domain.RawChain) (*domain.UnderlyingQuote, []domain.OptionLeg)
}

// IngestResult summarises one ingestion.
type IngestResult struct {
	Symbol    string        `json:"symbol"`
	Source    string        `json:"source,omitempty"`
	Legs      int           `json:"legs"`
	Value     float64       `json:"underlying_value"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
	// Skipped is set when another process held the symbol's ingest lock.
	Skipped bool `json:"skipped,omitempty"`
}

// SnapshotEvent is published on domain.ChannelSnapshots after each stored
// snapshot.
type SnapshotEvent struct {
	Event     string    `json:"event"`
	Symbol    string    `json:"symbol"`
	Source    string    `json:"source"`
	Value     float64   `json:"underlying_value"`
	Legs      int       `json:"legs"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestService runs fetch, normalize and store for one symbol at a time per
// symbol. Distinct symbols ingest in parallel.
type IngestService struct {
	fetcher  ChainFetcher
	parser   ChainParser
	store    domain.SnapshotStore
	locks    domain.LockManager
	bus      domain.SignalBus
	archiver domain.ChainArchiver
	tracker  errtrack.Tracker
	lockTTL  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	symbols map[string]*sync.Mutex
}

// IngestDeps groups the optional collaborators of IngestService. Nil fields
// disable the corresponding step.
type IngestDeps struct {
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Archiver domain.ChainArchiver
	Tracker  errtrack.Tracker
	// LockTTL bounds how long a crashed process can hold a symbol.
	LockTTL time.Duration
}

// NewIngestService creates an IngestService.
func NewIngestService(
	fetcher ChainFetcher,
	parser ChainParser,
	store domain.SnapshotStore,
	deps IngestDeps,
	logger *slog.Logger,
) *IngestService {
	if deps.Tracker == nil {
		deps.Tracker = errtrack.Noop{}
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 2 * time.Minute
	}
	return &IngestService{
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		locks:    deps.Locks,
		bus:      deps.Bus,
		archiver: deps.Archiver,
		tracker:  deps.Tracker,
		lockTTL:  deps.LockTTL,
		logger:   logger.With(slog.String("component", "ingest")),
		symbols:  make(map[string]*sync.Mutex),
	}
}

func (s *IngestService) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.symbols[symbol]
	if !ok {
		m = &sync.Mutex{}
		s.symbols[symbol] = m
	}
	return m
}

// Ingest fetches, normalizes and atomically stores the chain for symbol.
// On any failure the previously stored snapshot is left untouched.
func (s *IngestService) Ingest(ctx context.Context, symbol string) (IngestResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res := IngestResult{Symbol: symbol}
	if symbol == "" {
		return res, fmt.Errorf("ingest: empty symbol: %w", domain.ErrUnknownSymbol)
	}

	m := s.symbolLock(symbol)
	m.Lock()
	defer m.Unlock()

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "ingest:"+symbol, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.InfoContext(ctx, "ingest skipped, held elsewhere", slog.String("symbol", symbol))
				res.Skipped = true
				return res, nil
			}
			return res, fmt.Errorf("ingest %s: lock: %w", symbol, err)
		}
		defer unlock()
	}

	start := time.Now()
	raw, err := s.fetcher.Fetch(ctx, symbol)
	if err != nil {
		s.fail(ctx, symbol, "fetch_error", start, err)
		return res, fmt.Errorf("ingest %s: %w", symbol, err)
	}
	res.Source = raw.Source

	quote, legs := s.parser.Parse(symbol, raw)
	if quote == nil {
		err := fmt.Errorf("ingest %s: %w", symbol, domain.ErrMalformedPayload)
		s.fail(ctx, symbol, "empty", start, err)
		return res, err
	}

	if err := s.store.StoreSnapshot(ctx, *quote, legs); err != nil {
		s.fail(ctx, symbol, "persist_error", start, err)
		return res, fmt.Errorf("ingest %s: %w", symbol, err)
	}

	res.Legs = len(legs)
	res.Value = quote.Value
	res.Timestamp = quote.Timestamp
	res.Duration = time.Since(start)
	metrics.RecordIngestion(symbol, "success", res.Duration, res.Legs)

	s.logger.InfoContext(ctx, "snapshot stored",
		slog.String("symbol", symbol),
		slog.String("source", res.Source),
		slog.Int("legs", res.Legs),
		slog.Float64("underlying", res.Value),
		slog.Duration("took", res.Duration),
	)

	s.archive(ctx, raw, *quote, legs)
	s.publish(ctx, res)
	return res, nil
}

func (s *IngestService) fail(ctx context.Context, symbol, status string, start time.Time, err error) {
	metrics.RecordIngestion(symbol, status, time.Since(start), 0)
	s.logger.ErrorContext(ctx, "ingest failed",
		slog.String("symbol", symbol),
		slog.String("status", status),
		slog.String("error", err.Error()),
	)
	if !errors.Is(err, context.Canceled) {
		s.tracker.CaptureError(ctx, err, map[string]string{"symbol": symbol, "stage": status})
	}
}

func (s *IngestService) archive(ctx context.Context, raw *domain.RawChain, quote domain.UnderlyingQuote, legs []domain.OptionLeg) {
	if s.archiver == nil {
		return
	}
	snap := domain.Snapshot{Quote: quote, Legs: legs}
	if err := s.archiver.ArchiveChain(ctx, raw, snap); err != nil {
		s.logger.WarnContext(ctx, "archive chain failed",
			slog.String("symbol", quote.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (s *IngestService) publish(ctx context.Context, res IngestResult) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(SnapshotEvent{
		Event:     "snapshot",
		Symbol:    res.Symbol,
		Source:    res.Source,
		Value:     res.Value,
		Legs:      res.Legs,
		Timestamp: res.Timestamp,
	})
	if err := s.bus.Publish(ctx, domain.ChannelSnapshots, payload); err != nil {
		s.logger.WarnContext(ctx, "publish snapshot event failed",
			slog.String("symbol", res.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// Archives lists the archived payloads of symbol for day.
func (s *IngestService) Archives(ctx context.Context, symbol string, day time.Time) ([]domain.BlobInfo, error) {
	if s.archiver == nil {
		return nil, fmt.Errorf("ingest: archives: %w", domain.ErrNotFound)
	}
	infos, err := s.archiver.ListArchives(ctx, strings.ToUpper(symbol), day)
	if err != nil {
		return nil, fmt.Errorf("ingest: archives %s: %w", symbol, err)
	}
	return infos, nil
}

// OpenArchive returns one archived object of symbol. The caller closes it.
func (s *IngestService) OpenArchive(ctx context.Context, symbol, path string) (io.ReadCloser, error) {
	if s.archiver == nil {
		return nil, fmt.Errorf("ingest: open archive: %w", domain.ErrNotFound)
	}
	body, err := s.archiver.OpenArchive(ctx, strings.ToUpper(symbol), path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open archive %s: %w", path, err)
	}
	return body, nil
}
