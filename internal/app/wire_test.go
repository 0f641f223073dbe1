package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/config"
	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/errtrack"
	memstore "github.com/alanyoungcy/chainpulse/internal/store/memory"
)

func TestWire_InProcessDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Ingest.Preference = "PRIMARY"
	// No history ticker for NIFTY keeps the test off the network.
	cfg.Yahoo.Tickers = map[string]string{"SENSEX": "^BSESN"}

	deps, cleanup, err := Wire(ctx, &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.IsType(t, &memstore.SnapshotStore{}, deps.Store)
	assert.Nil(t, deps.Archiver)
	assert.IsType(t, errtrack.Noop{}, deps.Tracker)
	assert.False(t, deps.Notifier.Enabled())
	assert.Equal(t, domain.PreferencePrimary, deps.Gateway.Preference())

	_, err = deps.Analytics.KeyLevels(ctx, "NIFTY")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	// Without credentials the primary provider serves the demo chain.
	res, err := deps.Ingest.Ingest(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", res.Symbol)
	assert.Positive(t, res.Legs)

	kl, err := deps.Analytics.KeyLevels(ctx, "NIFTY")
	require.NoError(t, err)
	assert.Positive(t, kl.TotalCallOI+kl.TotalPutOI)

	_, err = deps.Alerts.EvaluateSymbol(ctx, "NIFTY")
	assert.NoError(t, err)

	_, err = deps.Ingest.Archives(ctx, "NIFTY", res.Timestamp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = deps.Ingest.OpenArchive(ctx, "NIFTY", "archive/NIFTY/x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWire_BadSealedToken(t *testing.T) {
	cfg := config.Defaults()
	cfg.Dhan.EncryptedTokenPath = "/nonexistent/dhan.json"
	cfg.Dhan.TokenPassword = "pw"

	_, _, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "dhan token")
}
