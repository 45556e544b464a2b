package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Agents and dashboards connect from anywhere
		return true
	},
}

const (
	// sendBuffer bounds each subscriber. A slow reader drops its oldest
	// pending messages instead of backing up the publisher.
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// StreamHandler pushes every message published on one live channel to a
// connected websocket client, in publish order, at-most-once, no replay.
type StreamHandler struct {
	subscriber Subscriber
	channel    string
	logger     *slog.Logger
}

func NewStreamHandler(subscriber Subscriber, channel string, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		subscriber: subscriber,
		channel:    channel,
		logger:     logger,
	}
}

// HandleWebSocket upgrades the connection and forwards channel messages
// until the client disconnects or the upstream subscription fails. Either
// way the subscription is released before the handler returns; no stream
// task outlives its client connection.
func (h *StreamHandler) HandleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	send := make(chan string, sendBuffer)

	// Read pump: clients only send control traffic; a read error means
	// the client went away.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	go func() {
		defer cancel()
		err := h.subscriber.Subscribe(ctx, h.channel, func(message string) {
			select {
			case send <- message:
			default:
				// Buffer full: drop the oldest pending message.
				select {
				case <-send:
				default:
				}
				select {
				case send <- message:
				default:
				}
			}
		})
		if err != nil && ctx.Err() == nil {
			h.logger.Warn("live channel subscription failed", "channel", h.channel, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-send:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		}
	}
}
