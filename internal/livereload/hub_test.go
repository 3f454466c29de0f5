package livereload

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestReloadFrameShape(t *testing.T) {
	data, err := json.Marshal(reloadMessage())
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"ok","data":{"reload":true}}`, string(data))
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(log.New(io.Discard))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conns := []*websocket.Conn{dialHub(t, srv), dialHub(t, srv), dialHub(t, srv)}
	require.Eventually(t, func() bool { return hub.ClientCount() == len(conns) }, time.Second, time.Millisecond)

	hub.Broadcast()
	for i, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "client %d", i)
		require.JSONEq(t, `{"type":"ok","data":{"reload":true}}`, string(data), "client %d", i)
	}
}

func TestDisconnectedClientIsReaped(t *testing.T) {
	hub := NewHub(log.New(io.Discard))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(log.New(io.Discard))
	hub.Broadcast()
	require.Zero(t, hub.ClientCount())
}
