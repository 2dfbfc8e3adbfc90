package approval

import (
	"context"

	"github.com/sentinel-cycle/engine/internal/eventbus"
)

// Drive watches bus for approval:pending events and calls resolver.Resolve
// for each one, looking the full Request back up from the Gate (the event
// payload only carries identifiers, not the diff/summary a Resolver wants
// to show). It runs until ctx is cancelled; callers typically run it in its
// own goroutine alongside a cycle started through the Engine.
func Drive(ctx context.Context, bus *eventbus.Bus, gate *Gate, resolver Resolver) {
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if evt.Kind != eventbus.KindApprovalPending {
				continue
			}
			approvalID, _ := evt.Payload["approval_id"].(string)
			req, ok := findPending(gate, approvalID)
			if !ok {
				continue
			}
			_ = resolver.Resolve(req)
		case <-ctx.Done():
			return
		}
	}
}

func findPending(gate *Gate, approvalID string) (Request, bool) {
	for _, req := range gate.Pending() {
		if req.ApprovalID == approvalID {
			return req, true
		}
	}
	return Request{}, false
}
