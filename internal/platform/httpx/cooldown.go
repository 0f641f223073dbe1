package httpx

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown enforces a minimum spacing between consecutive outbound calls to
// one provider. It is shared by every symbol fetched through that provider.
type Cooldown struct {
	name    string
	limiter *rate.Limiter
}

// NewCooldown returns a limiter that admits one call per interval. A
// non-positive interval disables the limit.
func NewCooldown(name string, interval time.Duration) *Cooldown {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Cooldown{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (c *Cooldown) Wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cooldown %s: %w", c.name, err)
	}
	return nil
}
