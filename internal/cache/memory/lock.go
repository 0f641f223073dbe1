package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// LockManager is an in-process domain.LockManager. Locks expire after their
// TTL like their Redis counterparts.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

// NewLockManager returns an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease), clock: time.Now}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.clock()
	if l, ok := lm.held[key]; ok && now.Before(l.expires) {
		return nil, fmt.Errorf("memory: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	token := uuid.NewString()
	lm.held[key] = lease{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if l, ok := lm.held[key]; ok && l.token == token {
				delete(lm.held, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
