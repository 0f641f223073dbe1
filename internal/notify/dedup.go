package notify

import (
	"sync"
	"time"
)

// Dedup suppresses repeats of the same alert key within a time-to-live
// window. It is safe for concurrent use.
type Dedup struct {
	seen      map[string]time.Time // key -> last delivered
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewDedup creates a Dedup that treats a key as a duplicate if it was seen
// within ttl. A non-positive ttl disables suppression.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate returns true if key has been seen within the TTL window.
// Otherwise it records key and returns false. Expired entries are swept at
// most once per TTL.
func (d *Dedup) IsDuplicate(key string) bool {
	if d.ttl <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) >= d.ttl {
		d.sweep(now)
	}
	if lastSeen, ok := d.seen[key]; ok && now.Sub(lastSeen) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

func (d *Dedup) sweep(now time.Time) {
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}
	d.lastSweep = now
}
