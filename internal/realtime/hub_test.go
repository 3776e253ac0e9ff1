package realtime

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/logging"
)

func newServer(t *testing.T, hub *Hub, agencyID int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !hub.Add(agencyID, conn) {
			_ = conn.Close()
			return
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Remove(agencyID, conn)
				_ = conn.Close()
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PublishReachesAgency(t *testing.T) {
	hub := NewHub(logging.NewWithWriter(io.Discard, "error"))
	srv := newServer(t, hub, 3)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count(3) == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(3, Event{Type: EventAssignmentCreated, AlertID: 10, AssignmentID: 20})
	hub.Publish(4, Event{Type: EventAssignmentCreated, AlertID: 11})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventAssignmentCreated, ev.Type)
	assert.Equal(t, int64(10), ev.AlertID)
	assert.Equal(t, int64(20), ev.AssignmentID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestHub_ConnectionLimit(t *testing.T) {
	hub := NewHub(logging.NewWithWriter(io.Discard, "error"))
	srv := newServer(t, hub, 1)

	for i := 0; i < MaxConnectionsPerAgency+2; i++ {
		dial(t, srv)
	}

	require.Eventually(t, func() bool { return hub.Count(1) == MaxConnectionsPerAgency }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, MaxConnectionsPerAgency, hub.Count(1))
}

func TestHub_RemoveOnDisconnect(t *testing.T) {
	hub := NewHub(logging.NewWithWriter(io.Discard, "error"))
	srv := newServer(t, hub, 8)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count(8) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Count(8) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StalledReaderDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(logging.NewWithWriter(io.Discard, "error"))
	hub.bufferSize = 1
	srv := newServer(t, hub, 5)
	dial(t, srv) // never read from
	require.Eventually(t, func() bool { return hub.Count(5) == 1 }, time.Second, 5*time.Millisecond)

	payload := strings.Repeat("x", 1<<20)
	start := time.Now()
	for i := 0; i < 64; i++ {
		hub.Publish(5, Event{Type: EventAlertLocation, AlertID: int64(i), Data: payload})
	}
	assert.Less(t, time.Since(start), 3*time.Second)

	assert.Eventually(t, func() bool { return hub.Count(5) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_PublishAfterRemoveIsNoop(t *testing.T) {
	hub := NewHub(logging.NewWithWriter(io.Discard, "error"))
	srv := newServer(t, hub, 6)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count(6) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count(6) == 0 }, time.Second, 5*time.Millisecond)

	assert.NotPanics(t, func() { hub.Publish(6, Event{Type: EventAlertCancelled, AlertID: 1}) })
}
