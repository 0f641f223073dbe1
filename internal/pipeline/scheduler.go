// Package pipeline drives periodic ingestion: a phased priming pass at
// startup followed by one ticker loop per cadence tier.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job processes one symbol.
type Job interface {
	Run(ctx context.Context, symbol string) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context, symbol string) error

func (f JobFunc) Run(ctx context.Context, symbol string) error { return f(ctx, symbol) }

// Tier is a group of symbols refreshed on a shared interval. Tiers are
// listed in priority order.
type Tier struct {
	Name     string
	Interval time.Duration
	Symbols  []string
}

// Options tunes the scheduler.
type Options struct {
	// PrimePause separates symbols during the startup priming pass.
	PrimePause time.Duration
	// SkipPrime disables the priming pass.
	SkipPrime bool
	// Concurrency bounds parallel symbols within one tier tick.
	Concurrency int
}

// Scheduler runs a Job over every tier.
type Scheduler struct {
	tiers  []Tier
	job    Job
	opts   Options
	logger *slog.Logger
}

// NewScheduler creates a scheduler. Tiers without symbols or with a
// non-positive interval are ignored.
func NewScheduler(tiers []Tier, job Job, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	kept := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if len(t.Symbols) == 0 || t.Interval <= 0 {
			continue
		}
		syms := make([]string, 0, len(t.Symbols))
		for _, s := range t.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				syms = append(syms, s)
			}
		}
		t.Symbols = syms
		kept = append(kept, t)
	}
	return &Scheduler{
		tiers:  kept,
		job:    job,
		opts:   opts,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Tiers returns the active tiers.
func (s *Scheduler) Tiers() []Tier {
	return s.tiers
}

// Run primes every symbol once, then runs the tier loops until ctx is done.
// Job errors are logged and never stop the loops.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting", slog.Int("tiers", len(s.tiers)))

	if !s.opts.SkipPrime {
		if err := s.Prime(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, tier := range s.tiers {
		g.Go(func() error {
			err := s.runTier(ctx, tier)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tier %s: %w", tier.Name, err)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("scheduler stopped cleanly")
	return nil
}

// Prime processes every symbol once, tier by tier in priority order, pausing
// between symbols.
func (s *Scheduler) Prime(ctx context.Context) error {
	first := true
	for _, tier := range s.tiers {
		for _, sym := range tier.Symbols {
			if !first && s.opts.PrimePause > 0 {
				if err := sleep(ctx, s.opts.PrimePause); err != nil {
					return err
				}
			}
			first = false
			s.runOne(ctx, tier.Name, sym)
		}
		s.logger.Info("tier primed", slog.String("tier", tier.Name), slog.Int("symbols", len(tier.Symbols)))
	}
	return ctx.Err()
}

func (s *Scheduler) runTier(ctx context.Context, tier Tier) error {
	s.logger.Info("tier loop started",
		slog.String("tier", tier.Name),
		slog.Duration("interval", tier.Interval),
		slog.Any("symbols", tier.Symbols),
	)
	ticker := time.NewTicker(tier.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tier loop stopped", slog.String("tier", tier.Name))
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, tier)
		}
	}
}

// tick runs every symbol of tier concurrently, bounded by Concurrency.
func (s *Scheduler) tick(ctx context.Context, tier Tier) {
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, sym := range tier.Symbols {
		g.Go(func() error {
			s.runOne(ctx, tier.Name, sym)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, tier, symbol string) {
	if err := s.job.Run(ctx, symbol); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("job failed",
			slog.String("tier", tier),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
