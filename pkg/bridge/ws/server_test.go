package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronebridge/pkg/engine"
	"dronebridge/pkg/telemetry"
)

func startHub(t *testing.T, opts ...engine.Option) (*engine.Hub, context.CancelFunc) {
	t.Helper()
	hub := engine.NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func startServer(t *testing.T, hub *engine.Hub) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv := NewServer(Config{Source: "udp"}, hub, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) telemetry.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	ev, err := telemetry.Decode(data)
	require.NoError(t, err)
	return ev
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	hub, _ := startHub(t)
	ts := startServer(t, hub)

	a := dial(t, ts)
	b := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	hb := telemetry.Heartbeat{Mode: "AUTO", Armed: true, SystemStatus: 4}
	hub.Broadcast(hb)

	assert.Equal(t, hb, readEvent(t, a))
	assert.Equal(t, hb, readEvent(t, b))
}

func TestJoinerReceivesGreetingFirst(t *testing.T) {
	greeting := []telemetry.Event{
		telemetry.Waypoint{Seq: 0, Lat: 13.05, Lon: 80.2824, Alt: 50, Command: 16},
		telemetry.MissionCount{Count: 1},
	}
	hub, _ := startHub(t, engine.WithGreeting(func() []telemetry.Event { return greeting }))
	ts := startServer(t, hub)

	conn := dial(t, ts)
	assert.Equal(t, greeting[0], readEvent(t, conn))
	assert.Equal(t, greeting[1], readEvent(t, conn))
}

func TestDisconnectLeavesHub(t *testing.T) {
	hub, _ := startHub(t)
	ts := startServer(t, hub)

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), hub.Stats().Leaves)

	hub.Broadcast(telemetry.MissionCurrent{Seq: 1})
	require.Eventually(t, func() bool { return hub.Stats().Broadcasts == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub, cancel := startHub(t)
	ts := startServer(t, hub)

	conn := dial(t, ts)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	hub, _ := startHub(t)
	ts := startServer(t, hub)
	dial(t, ts)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, Health{Status: "ok", Subscribers: 1, Source: "udp"}, h)

	post, err := http.Post(ts.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestClientTrySendAfterClose(t *testing.T) {
	hub, _ := startHub(t)
	ts := startServer(t, hub)
	conn := dial(t, ts)

	c := newClient(conn, Config{SendBuf: 1, WriteTimeout: time.Second, PingInterval: time.Second})
	assert.NotEmpty(t, c.ID())
	assert.True(t, c.TrySend([]byte("a")))
	assert.False(t, c.TrySend([]byte("b")), "queue full")

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.False(t, c.TrySend([]byte("c")))
}

func TestServeBindFailure(t *testing.T) {
	hub, _ := startHub(t)
	first := NewServer(Config{Addr: "127.0.0.1:0"}, hub, nil)
	require.NoError(t, first.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Serve(ctx) }()

	second := NewServer(Config{Addr: first.Addr().String()}, hub, nil)
	assert.Error(t, second.Serve(context.Background()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
