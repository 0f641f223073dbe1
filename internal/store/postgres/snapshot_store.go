package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

var legColumns = []string{
	"ts", "symbol", "expiry_date", "strike_price", "option_type",
	"last_price", "iv", "oi", "oi_change", "volume",
	"delta", "gamma", "theta", "vega",
}

// StoreSnapshot upserts the quote, deletes every leg of the symbol and copies
// in the new legs inside one transaction. A transaction-scoped advisory lock
// keyed by symbol serialises concurrent replaces of the same symbol across
// processes; other symbols proceed independently.
func (s *SnapshotStore) StoreSnapshot(ctx context.Context, quote domain.UnderlyingQuote, legs []domain.OptionLeg) error {
	symbol := strings.ToUpper(quote.Symbol)
	fail := func(op string, err error) error {
		return &domain.PersistenceError{Symbol: symbol, Op: op, Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, symbol); err != nil {
		return fail("lock", err)
	}

	const upsertQuote = `
		INSERT INTO underlying_quotes (symbol, value, ts, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			value = EXCLUDED.value,
			ts = EXCLUDED.ts,
			updated_at = NOW()`
	if _, err := tx.Exec(ctx, upsertQuote, symbol, quote.Value, quote.Timestamp); err != nil {
		return fail("upsert quote", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM option_legs WHERE symbol = $1`, symbol); err != nil {
		return fail("delete legs", err)
	}

	legs = domain.DedupeLegs(legs)
	if len(legs) > 0 {
		rows := make([][]any, 0, len(legs))
		for _, l := range legs {
			rows = append(rows, []any{
				quote.Timestamp, symbol, l.ExpiryDate, l.StrikePrice, string(l.OptionType),
				l.LastPrice, l.IV, l.OI, l.OIChange, l.Volume,
				l.Delta, l.Gamma, l.Theta, l.Vega,
			})
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"option_legs"}, legColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fail("copy legs", err)
		}
		if int(n) != len(rows) {
			return fail("copy legs", fmt.Errorf("copied %d of %d rows", n, len(rows)))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail("commit", err)
	}
	return nil
}

// Latest reads the quote and legs of symbol from one repeatable-read
// snapshot so a concurrent replace is never observed half-applied.
func (s *SnapshotStore) Latest(ctx context.Context, symbol string) (domain.Snapshot, error) {
	symbol = strings.ToUpper(symbol)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("postgres: latest %s: begin: %w", symbol, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snap domain.Snapshot
	err = tx.QueryRow(ctx,
		`SELECT symbol, value, ts FROM underlying_quotes WHERE symbol = $1`, symbol,
	).Scan(&snap.Quote.Symbol, &snap.Quote.Value, &snap.Quote.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, fmt.Errorf("postgres: latest %s: %w", symbol, domain.ErrNotReady)
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: latest %s: quote: %w", symbol, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT ts, symbol, expiry_date, strike_price, option_type,
			last_price, iv, oi, oi_change, volume,
			delta, gamma, theta, vega
		FROM option_legs
		WHERE symbol = $1
		ORDER BY expiry_date, strike_price, option_type`, symbol)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("postgres: latest %s: legs: %w", symbol, err)
	}
	legs, err := scanLegRows(rows)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("postgres: latest %s: scan legs: %w", symbol, err)
	}
	snap.Legs = legs
	return snap, nil
}

// Symbols returns every symbol with a stored snapshot.
func (s *SnapshotStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol FROM underlying_quotes ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("postgres: symbols: %w", err)
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: symbols: %w", err)
	}
	return symbols, nil
}

func scanLegRows(rows pgx.Rows) ([]domain.OptionLeg, error) {
	defer rows.Close()

	var legs []domain.OptionLeg
	for rows.Next() {
		var (
			l   domain.OptionLeg
			typ string
		)
		if err := rows.Scan(
			&l.Timestamp, &l.Symbol, &l.ExpiryDate, &l.StrikePrice, &typ,
			&l.LastPrice, &l.IV, &l.OI, &l.OIChange, &l.Volume,
			&l.Delta, &l.Gamma, &l.Theta, &l.Vega,
		); err != nil {
			return nil, err
		}
		ot, ok := domain.ParseOptionType(typ)
		if !ok {
			return nil, fmt.Errorf("unknown option_type %q", typ)
		}
		l.OptionType = ot
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
