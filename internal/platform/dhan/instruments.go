package dhan

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Directory caches the symbol → security ID mapping. A lookup miss triggers a
// single refresh shared by every concurrent caller, then one re-query.
type Directory struct {
	mu    sync.RWMutex
	ids   map[string]int64
	load  func(ctx context.Context) ([]Instrument, error)
	group singleflight.Group
}

// NewDirectory returns a directory that fills itself through load.
func NewDirectory(load func(ctx context.Context) ([]Instrument, error)) *Directory {
	return &Directory{
		ids:  make(map[string]int64),
		load: load,
	}
}

// Resolve returns the security ID for symbol, refreshing the directory once
// on a miss. domain.ErrUnknownSymbol is returned when the refreshed directory
// still lacks the symbol.
func (d *Directory) Resolve(ctx context.Context, symbol string) (int64, error) {
	symbol = strings.ToUpper(symbol)
	if id, ok := d.lookup(symbol); ok {
		return id, nil
	}

	if err := d.Refresh(ctx); err != nil {
		return 0, err
	}

	if id, ok := d.lookup(symbol); ok {
		return id, nil
	}
	return 0, fmt.Errorf("dhan: resolve %s: %w", symbol, domain.ErrUnknownSymbol)
}

// Refresh reloads the whole directory. Concurrent calls share one load.
func (d *Directory) Refresh(ctx context.Context) error {
	_, err, _ := d.group.Do("refresh", func() (any, error) {
		items, err := d.load(ctx)
		if err != nil {
			return nil, err
		}

		ids := make(map[string]int64, len(items))
		for _, it := range items {
			key := strings.ToUpper(strings.TrimSpace(it.key()))
			id := it.securityID()
			if key == "" || id == 0 {
				continue
			}
			ids[key] = id
		}

		d.mu.Lock()
		d.ids = ids
		d.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("dhan: refresh instruments: %w", err)
	}
	return nil
}

func (d *Directory) lookup(symbol string) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[symbol]
	return id, ok
}

// Segment returns the exchange segment Dhan expects for symbol.
func Segment(symbol string) string {
	if domain.IsIndex(symbol) {
		return "IDX_I"
	}
	return "NSE_FNO"
}
