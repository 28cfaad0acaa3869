package httpapi

import (
	"net/http"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/infrastructure/push"
	"leadcall-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// StreamHandler upgrades authenticated callers to a websocket and pipes
// their push events from the connection registry. One identity may hold any
// number of concurrent sockets.
type StreamHandler struct {
	registry *push.Registry
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(registry *push.Registry, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream handles GET /events
func (h *StreamHandler) Stream(c *gin.Context) {
	p := currentPrincipal(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	recipient := entity.Recipient{ID: p.ID, Kind: p.Kind}
	events, unsubscribe := h.registry.Subscribe(recipient)

	h.logger.Info("Event stream opened", "recipient", recipient.Key())

	// Reader: we never expect client frames, but reading drives pong
	// handling and detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		unsubscribe()
		conn.Close()
		h.logger.Info("Event stream closed", "recipient", recipient.Key())
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
