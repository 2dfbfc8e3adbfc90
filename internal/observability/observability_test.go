package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/eventbus"
)

func TestNewProviderExposesMetricsEndpoint(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	p.RecordStarted(context.Background())
	p.RecordTerminal(context.Background(), "done", 1.5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	p.MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "sentinel_cycle_started_total")
	require.Contains(t, rec.Body.String(), "sentinel_cycle_done_total")
}

func TestCollectorTracksOneCycleThroughTerminalEvent(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	bus := eventbus.New(nil)
	collector := NewCollector(p, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	bus.Emit(string(eventbus.KindCycleStarted), map[string]any{"cycle_id": "c1", "goal": "add greet()", "session_id": "s1"})
	bus.Emit(string(eventbus.KindAgentCurating), map[string]any{"cycle_id": "c1"})
	bus.Emit(string(eventbus.KindApprovalPending), map[string]any{"module_id": "context"})
	bus.Emit(string(eventbus.KindCycleDone), map[string]any{"cycle_id": "c1", "duration_ms": int64(250), "summary": "committed v1"})

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body := rec.Body.String()
		return strings.Contains(body, "sentinel_cycle_done_total") && strings.Contains(body, "sentinel_approval_requested_total")
	}, 2*time.Second, 10*time.Millisecond)

	collector.Stop()
}
