// Package ws pushes the event bus's lifecycle notifications to connected
// WebSocket clients, for consumers that want a persistent push channel
// instead of polling get_status or reconnecting an SSE stream.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	subscriberName = "ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin pushes are read-only lifecycle events, not credentialed
	// requests; the HTTP API's own CORS policy gates write operations.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades incoming requests and relays bus events as JSON text
// frames, one frame per event, until the client disconnects.
type Handler struct {
	bus    *eventbus.Bus
	logger logging.Logger
}

// NewHandler builds a Handler bound to bus.
func NewHandler(bus *eventbus.Bus, logger logging.Logger) *Handler {
	return &Handler{bus: bus, logger: logging.OrNop(logger).With(subscriberName)}
}

type wireEvent struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// ServeHTTP implements http.Handler so it can be mounted directly on a
// mux or wrapped with gin.WrapH.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer sub.Unsubscribe()

	// Drain client-initiated frames (pings/closes) on their own goroutine;
	// this connection is push-only, so anything the client sends is just
	// discarded, not routed back into the engine.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(wireEvent{Kind: string(evt.Kind), Payload: evt.Payload})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
