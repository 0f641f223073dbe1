package errtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoDSNIsNoop(t *testing.T) {
	tr, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, tr)
	tr.CaptureError(context.Background(), errors.New("ignored"), nil)
	tr.Flush(time.Millisecond)
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(Config{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestNew_SentryTracker(t *testing.T) {
	tr, err := New(Config{DSN: "https://public@example.com/1", Environment: "test"})
	require.NoError(t, err)
	require.IsType(t, &Sentry{}, tr)

	tr.CaptureError(context.Background(), nil, nil)
	tr.CaptureError(context.Background(), errors.New("boom"), map[string]string{"symbol": "NIFTY"})
	tr.Flush(10 * time.Millisecond)
}
