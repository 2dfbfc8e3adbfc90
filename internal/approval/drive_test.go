package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/eventbus"
)

func TestDriveResolvesPendingApprovalsAutomatically(t *testing.T) {
	bus := eventbus.New(nil)
	gate := NewGate(DefaultConfig(), nil, bus)
	gate.RegisterModule("context", "approve_context")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Drive(ctx, bus, gate, NewAutoApproveResolver(gate))

	resultCh := make(chan any, 1)
	go func() {
		value, err := gate.RequestApproval(context.Background(), RequestApprovalInput{
			ModuleID: "context", Capability: "approve_context", ActionLabel: "approve",
		})
		require.NoError(t, err)
		resultCh <- value
	}()

	select {
	case <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("approval was never auto-resolved")
	}
}
