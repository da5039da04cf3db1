package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blink-market/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	streamBuffer   = 256
)

// StreamHandler pushes market events to websocket clients as they are
// committed. A client that falls behind loses events rather than slowing
// down bet admission.
type StreamHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewStreamHandler accepts connections from origins for which allowOrigin
// returns true. A nil allowOrigin accepts every origin.
func NewStreamHandler(bus *events.Bus, allowOrigin func(r *http.Request) bool, log *zap.Logger) *StreamHandler {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &StreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
		log: log,
	}
}

// Stream upgrades the request and forwards events. With ?market_id=N only
// that market's events are sent.
// GET /ws/markets
func (h *StreamHandler) Stream(c *gin.Context) {
	var marketID uint
	if raw := c.Query("market_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid market_id")
			return
		}
		marketID = uint(id)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	feed, cancel := h.bus.Subscribe(streamBuffer)
	h.log.Debug("ws: client connected", zap.Uint("market_id", marketID), zap.Int("subscribers", h.bus.Subscribers()))

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, feed, marketID, done)

	cancel()
	conn.Close()
	h.log.Debug("ws: client disconnected", zap.Uint("market_id", marketID))
}

// readPump discards client frames and closes done when the peer goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws: unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, feed <-chan events.Event, marketID uint, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			if marketID != 0 && ev.MarketID != marketID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
