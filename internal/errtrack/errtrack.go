// Package errtrack reports ingestion and request failures to an external
// error tracker.
package errtrack

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker captures errors with tags.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// Noop discards everything.
type Noop struct{}

func (Noop) CaptureError(context.Context, error, map[string]string) {}
func (Noop) Flush(time.Duration)                                    {}

// Config selects the Sentry project.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Sentry sends errors to Sentry through a dedicated hub.
type Sentry struct {
	hub *sentry.Hub
}

// New returns a Sentry tracker, or Noop when no DSN is configured.
func New(cfg Config) (Tracker, error) {
	if cfg.DSN == "" {
		return Noop{}, nil
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  rate,
	})
	if err != nil {
		return nil, fmt.Errorf("errtrack: init sentry: %w", err)
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// CaptureError sends err tagged with tags. Context values are not inspected.
func (s *Sentry) CaptureError(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (s *Sentry) Flush(timeout time.Duration) {
	s.hub.Flush(timeout)
}
