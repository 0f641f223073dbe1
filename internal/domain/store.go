package domain

import "context"

// SnapshotStore persists the authoritative current snapshot per symbol.
//
// StoreSnapshot replaces the quote and every leg for quote.Symbol as one
// unit: readers observe either the complete previous snapshot or the
// complete new one. On failure it returns a *PersistenceError and the
// previous snapshot is left untouched.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, quote UnderlyingQuote, legs []OptionLeg) error
	// Latest returns ErrNotReady when no snapshot has been stored for symbol.
	Latest(ctx context.Context, symbol string) (Snapshot, error)
	Symbols(ctx context.Context) ([]string, error)
}
