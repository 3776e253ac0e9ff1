// Package realtime pushes assignment events to connected agency dashboards.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"emergency-dispatch/internal/logging"
)

// MaxConnectionsPerAgency caps concurrent sockets for one agency.
const MaxConnectionsPerAgency = 10

const (
	EventAssignmentCreated = "assignment.created"
	EventAlertLocation     = "alert.location"
	EventAlertCancelled    = "alert.cancelled"
)

type Event struct {
	Type         string    `json:"type"`
	AlertID      int64     `json:"alert_id"`
	AssignmentID int64     `json:"assignment_id,omitempty"`
	Data         any       `json:"data,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many events a connection may have queued before it
	// is treated as stuck and dropped.
	sendBuffer = 32
)

// client owns one socket. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks websocket connections per agency.
type Hub struct {
	connections map[int64]map[*websocket.Conn]*client
	mutex       sync.Mutex
	logger      *logging.Logger
	bufferSize  int
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[int64]map[*websocket.Conn]*client),
		logger:      logger,
		bufferSize:  sendBuffer,
	}
}

// Add registers conn for agencyID and starts its writer. It returns false when
// the agency is at its limit.
func (h *Hub) Add(agencyID int64, conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[agencyID]; !exists {
		h.connections[agencyID] = make(map[*websocket.Conn]*client)
	}
	if len(h.connections[agencyID]) >= MaxConnectionsPerAgency {
		h.logger.Warnf("Max connections reached for agency %d", agencyID)
		return false
	}
	c := &client{conn: conn, send: make(chan []byte, h.bufferSize)}
	h.connections[agencyID][conn] = c
	go h.writeLoop(agencyID, c)
	h.logger.Infof("Added WebSocket connection for agency %d (total: %d)", agencyID, len(h.connections[agencyID]))
	return true
}

func (h *Hub) Remove(agencyID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.drop(agencyID, conn) {
		h.logger.Infof("Removed WebSocket connection for agency %d (remaining: %d)", agencyID, len(h.connections[agencyID]))
	}
}

// drop unregisters conn and stops its writer. The caller holds the mutex.
func (h *Hub) drop(agencyID int64, conn *websocket.Conn) bool {
	conns, exists := h.connections[agencyID]
	if !exists {
		return false
	}
	c, ok := conns[conn]
	if !ok {
		return false
	}
	delete(conns, conn)
	close(c.send)
	if len(conns) == 0 {
		delete(h.connections, agencyID)
	}
	return true
}

// writeLoop sends queued events until the queue is closed or a write fails.
// A failed write closes the socket, which ends the reader and its Remove call.
func (h *Hub) writeLoop(agencyID int64, c *client) {
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to send WebSocket message to agency %d: %v", agencyID, err)
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// Publish queues ev for every connection of agencyID without blocking.
// Connections whose queue is full are closed and dropped.
func (h *Hub) Publish(agencyID int64, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	message, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Failed to encode %s event: %v", ev.Type, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.connections[agencyID] {
		select {
		case c.send <- message:
		default:
			h.logger.Warnf("WebSocket for agency %d is not keeping up, dropping it", agencyID)
			_ = conn.Close()
			h.drop(agencyID, conn)
		}
	}
}

func (h *Hub) Count(agencyID int64) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[agencyID])
}
