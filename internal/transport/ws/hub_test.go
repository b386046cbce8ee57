package ws

import (
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
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubFiltersByDevice(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	filtered := dial(t, srv, "?deviceId=2")
	all := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(1, []byte(`{"deviceId":1}`))
	hub.Broadcast(2, []byte(`{"deviceId":2}`))

	_ = filtered.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := filtered.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"deviceId":2}`, string(msg))

	_ = all.SetReadDeadline(time.Now().Add(time.Second))
	for _, expected := range []string{`{"deviceId":1}`, `{"deviceId":2}`} {
		_, msg, err := all.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, expected, string(msg))
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubRejectsBadDeviceFilter(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()

	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?deviceId=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceFromChannel(t *testing.T) {
	id, err := deviceFromChannel("device:42:events")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = deviceFromChannel("fleet:events")
	assert.Error(t, err)
}
