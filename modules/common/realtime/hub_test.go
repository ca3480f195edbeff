package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(func(_ context.Context, id string) (any, error) {
		if id == "missing" {
			return nil, errors.New("not found")
		}
		return map[string]string{"id": id, "status": "idle"}, nil
	}, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, session string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + session
}

func TestHubSendsSnapshotThenEvents(t *testing.T) {
	hub, srv := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "abc"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "session_state", first.Type)
	assert.Equal(t, "abc", first.SessionId)

	require.Eventually(t, func() bool { return hub.Stats().CurrentClients == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("other", "session_state", "ignored")
	hub.Publish("abc", "session_state", map[string]string{"status": "generating"})

	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "abc", second.SessionId)
	payload, ok := second.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "generating", payload["status"])

	stats := hub.Stats()
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.MessagesSent)
}

func TestHubRejectsUnknownSession(t *testing.T) {
	_, srv := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubCleansUpEmptyRooms(t *testing.T) {
	hub, srv := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "abc"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Stats().CurrentClients == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Stats().CurrentClients == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, hub.CleanupEmptyRooms())
	assert.Equal(t, 0, hub.Stats().ActiveRooms)
}

func TestSubscribedRoomSurvivesCleanup(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	c := &client{id: "c1", sessionId: "abc", send: make(chan []byte, 1)}

	_, count := hub.subscribe("abc", c)
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, hub.CleanupEmptyRooms())

	hub.Publish("abc", "session_state", map[string]string{"status": "succeeded"})
	select {
	case data := <-c.send:
		assert.Contains(t, string(data), "succeeded")
	default:
		t.Fatal("published event was not delivered to the subscriber")
	}
}
