package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Callers are already authenticated by the gateway headers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AgencyFeed upgrades to a websocket that receives the agency's realtime events.
func (h *Handler) AgencyFeed(c *gin.Context) {
	agencyID := identity(c).AgencyID
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for agency %d: %v", agencyID, err)
		return
	}
	if !h.hub.Add(agencyID, conn) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer func() {
		h.hub.Remove(agencyID, conn)
		_ = conn.Close()
	}()

	// Dashboards only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("WebSocket for agency %d closed: %v", agencyID, err)
			}
			return
		}
	}
}
