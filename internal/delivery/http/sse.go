package http

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-cycle/engine/internal/eventbus"
)

// SSEHandler streams the event bus's lifecycle notifications (§6's event
// contract) to a single connected client as Server-Sent Events, in the
// order the bus delivers them. One subscription per connection; it is
// torn down when the client disconnects.
type SSEHandler struct {
	bus *eventbus.Bus
}

// NewSSEHandler builds an SSEHandler bound to bus.
func NewSSEHandler(bus *eventbus.Bus) *SSEHandler {
	return &SSEHandler{bus: bus}
}

// HandleStream implements GET /api/events.
func (h *SSEHandler) HandleStream(c *gin.Context) {
	sub := h.bus.Subscribe()
	defer sub.Unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return false
			}
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
