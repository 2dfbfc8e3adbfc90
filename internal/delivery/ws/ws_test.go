package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/eventbus"
)

func TestHandlerRelaysBusEventsAsTextFrames(t *testing.T) {
	bus := eventbus.New(nil)
	handler := NewHandler(bus, nil)

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to subscribe before publishing.
	require.Eventually(t, func() bool {
		bus.Emit(string(eventbus.KindCycleStarted), map[string]any{"cycle_id": "c1"})
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		return strings.Contains(string(data), "cycle:started") && strings.Contains(string(data), "c1")
	}, 2*time.Second, 20*time.Millisecond)
}
