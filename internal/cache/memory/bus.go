// Package memory provides in-process stand-ins for the Redis-backed lock
// manager, signal bus and rate limiter, used when no Redis is configured.
package memory

import (
	"context"
	"path"
	"sync"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Bus is an in-process domain.SignalBus. Slow subscribers drop messages
// rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	pattern string
	ch      chan []byte
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every subscriber whose channel or glob pattern
// matches.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. It is closed
// when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{pattern: channel, ch: make(chan []byte, 128)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()

	return s.ch, nil
}

var _ domain.SignalBus = (*Bus)(nil)
