package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainpulse/internal/cache/memory"
	"github.com/alanyoungcy/chainpulse/internal/domain"
)

func startHub(t *testing.T) (*Hub, *memory.Bus, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := memory.NewBus()
	hub := NewHub(bus, "full", slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_StreamsBusEvents(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dial(t, url)

	assert.Equal(t, "status", readEnvelope(t, conn).Type)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelSnapshots, []byte(`{"event":"snapshot_stored","symbol":"NIFTY","legs":4}`)))
	env := readEnvelope(t, conn)
	assert.Equal(t, "snapshot", env.Type)
	assert.JSONEq(t, `{"event":"snapshot_stored","symbol":"NIFTY","legs":4}`, string(env.Payload))

	require.NoError(t, bus.Publish(ctx, domain.ChannelAlerts, []byte(`{"symbol":"NIFTY","rule_name":"EXTREME_BEARISH_PCR"}`)))
	env = readEnvelope(t, conn)
	assert.Equal(t, "alert", env.Type)
}

func TestHub_SymbolFilter(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dial(t, url+"?symbols=banknifty")
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelSnapshots, []byte(`{"symbol":"NIFTY"}`)))
	require.NoError(t, bus.Publish(ctx, domain.ChannelSnapshots, []byte(`{"symbol":"BANKNIFTY"}`)))

	env := readEnvelope(t, conn)
	assert.JSONEq(t, `{"symbol":"BANKNIFTY"}`, string(env.Payload))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, url := startHub(t)
	conn := dial(t, url)
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
