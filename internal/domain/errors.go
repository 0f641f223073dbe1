package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotReady         = errors.New("snapshot not ready")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrMalformedPayload = errors.New("malformed option chain payload")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrContextDone      = errors.New("context cancelled")
	ErrLockHeld         = errors.New("lock already held")
)

// PersistenceError reports a failed snapshot write. The store guarantees the
// previous snapshot for Symbol is still intact when this is returned.
type PersistenceError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist snapshot %s: %s: %v", e.Symbol, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
