package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentinel-cycle/engine/internal/eventbus"
	"github.com/sentinel-cycle/engine/internal/logging"
)

// Collector turns the event bus's lifecycle notifications into spans and
// metrics without the cycle engine needing to know observability exists:
// it subscribes like any other observer (§6's event contract is the only
// coupling). One root span is kept open per cycle, from cycle:started to
// its terminal event; every intermediate event becomes a short child span
// under it, matching the "one span per FSM transition" requirement.
type Collector struct {
	provider *Provider
	bus      *eventbus.Bus
	logger   logging.Logger
	sub      *eventbus.Subscription

	mu    sync.Mutex
	roots map[string]trace.Span
}

// NewCollector builds a Collector bound to bus; call Start to begin
// consuming events.
func NewCollector(provider *Provider, bus *eventbus.Bus, logger logging.Logger) *Collector {
	return &Collector{
		provider: provider,
		bus:      bus,
		logger:   logging.OrNop(logger).With("observability"),
		roots:    map[string]trace.Span{},
	}
}

// Start subscribes to the bus and consumes events until ctx is cancelled
// or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.sub = c.bus.Subscribe()
	go func() {
		for {
			select {
			case evt, ok := <-c.sub.Events:
				if !ok {
					return
				}
				c.handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes from the bus. Any cycles still in flight at this point
// leak their root span (acceptable: the process is shutting down).
func (c *Collector) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
}

func (c *Collector) handle(evt eventbus.Event) {
	// The Gate emits approval:pending/approval:resolved without a cycle_id
	// (it has no notion of cycles); handle those before the cycle-scoped
	// span bookkeeping below.
	switch evt.Kind {
	case eventbus.KindApprovalPending:
		moduleID, _ := evt.Payload["module_id"].(string)
		c.provider.RecordApprovalRequested(context.Background(), moduleID)
		return
	}

	cycleID, _ := evt.Payload["cycle_id"].(string)
	if cycleID == "" {
		return
	}

	switch evt.Kind {
	case eventbus.KindCycleStarted:
		c.startRoot(cycleID, evt.Payload)
		return
	case eventbus.KindCycleRolledBack:
		reason, _ := evt.Payload["reason"].(string)
		c.provider.RecordRollback(context.Background(), reason)
	}

	c.childSpan(cycleID, string(evt.Kind), evt.Payload)

	switch evt.Kind {
	case eventbus.KindCycleDone, eventbus.KindCycleFailed, eventbus.KindCycleCancelled:
		c.finishRoot(cycleID, evt.Kind, evt.Payload)
	}
}

func (c *Collector) startRoot(cycleID string, payload map[string]any) {
	attrs := []attribute.KeyValue{attribute.String("cycle_id", cycleID)}
	if goal, ok := payload["goal"].(string); ok {
		attrs = append(attrs, attribute.String("goal", goal))
	}
	if sessionID, ok := payload["session_id"].(string); ok {
		attrs = append(attrs, attribute.String("session_id", sessionID))
	}

	_, span := c.provider.Tracer().Start(context.Background(), "cycle", trace.WithAttributes(attrs...))

	c.mu.Lock()
	c.roots[cycleID] = span
	c.mu.Unlock()

	c.provider.RecordStarted(context.Background())
}

func (c *Collector) childSpan(cycleID, name string, payload map[string]any) {
	c.mu.Lock()
	root, ok := c.roots[cycleID]
	c.mu.Unlock()
	if !ok {
		return
	}

	parentCtx := trace.ContextWithSpan(context.Background(), root)
	attrs := make([]attribute.KeyValue, 0, len(payload))
	for k, v := range payload {
		attrs = append(attrs, attribute.String(k, toAttrString(v)))
	}
	_, span := c.provider.Tracer().Start(parentCtx, name, trace.WithAttributes(attrs...))
	span.End()
}

func (c *Collector) finishRoot(cycleID string, kind eventbus.Kind, payload map[string]any) {
	c.mu.Lock()
	root, ok := c.roots[cycleID]
	delete(c.roots, cycleID)
	c.mu.Unlock()

	outcome := "done"
	switch kind {
	case eventbus.KindCycleFailed:
		outcome = "failed"
	case eventbus.KindCycleCancelled:
		outcome = "cancelled"
	}

	if ok {
		if outcome != "done" {
			root.SetStatus(codes.Error, outcome)
		} else {
			root.SetStatus(codes.Ok, "")
		}
		root.End()
	}

	var seconds float64
	if ms, ok := payload["duration_ms"].(int64); ok {
		seconds = (time.Duration(ms) * time.Millisecond).Seconds()
	}
	c.provider.RecordTerminal(context.Background(), outcome, seconds)
}

func toAttrString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
