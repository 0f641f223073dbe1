package httpx

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds the exponential backoff used for upstream calls.
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns 4 attempts starting at 500ms and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) normalised() RetryConfig {
	d := DefaultRetryConfig()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.normalised()
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.Attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempt(s): %w", attempt, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", cfg.Attempts, lastErr)
}
