package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequiresApprovalResolvesEffectiveMode(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	g.RegisterModule("vfs", "apply")

	require.True(t, g.RequiresApproval("vfs", "apply"))
	require.False(t, g.RequiresApproval("vfs", "unregistered-capability"))

	g.SetModuleMode("vfs", ModeAutonomous)
	require.False(t, g.RequiresApproval("vfs", "apply"))

	g.SetModuleMode("vfs", ModeInherit)
	require.True(t, g.RequiresApproval("vfs", "apply"))

	g.SetMasterMode(ModeAutonomous)
	require.False(t, g.RequiresApproval("vfs", "apply"))
}

func TestRequestApprovalResolvesImmediatelyWhenNotRequired(t *testing.T) {
	g := NewGate(Config{MasterMode: ModeAutonomous}, nil, nil)
	g.RegisterModule("vfs", "apply")

	value, err := g.RequestApproval(context.Background(), RequestApprovalInput{
		ModuleID: "vfs", Capability: "apply", Payload: "unchanged",
	})
	require.NoError(t, err)
	require.Equal(t, "unchanged", value)
	require.Empty(t, g.Pending())
}

func TestRequestApprovalBlocksUntilApproved(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	g.RegisterModule("vfs", "apply")

	var wg sync.WaitGroup
	var result any
	var resultErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, resultErr = g.RequestApproval(context.Background(), RequestApprovalInput{
			ModuleID: "vfs", Capability: "apply", Payload: "payload-value",
		})
	}()

	require.Eventually(t, func() bool { return len(g.Pending()) == 1 }, time.Second, time.Millisecond)
	pending := g.Pending()[0]
	require.NoError(t, g.Approve(pending.ApprovalID, nil))

	wg.Wait()
	require.NoError(t, resultErr)
	require.Equal(t, "payload-value", result)
	require.Len(t, g.History(10), 1)
}

func TestRequestApprovalRejectedReturnsError(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	g.RegisterModule("vfs", "apply")

	var wg sync.WaitGroup
	var resultErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, resultErr = g.RequestApproval(context.Background(), RequestApprovalInput{
			ModuleID: "vfs", Capability: "apply",
		})
	}()

	require.Eventually(t, func() bool { return len(g.Pending()) == 1 }, time.Second, time.Millisecond)
	pending := g.Pending()[0]
	require.NoError(t, g.Reject(pending.ApprovalID, "not now"))

	wg.Wait()
	require.Error(t, resultErr)
}

func TestApproveUnknownIDFails(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	err := g.Approve("does-not-exist", nil)
	require.Error(t, err)
}

func TestApproveAlreadyResolvedFails(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	g.RegisterModule("vfs", "apply")

	go func() {
		_, _ = g.RequestApproval(context.Background(), RequestApprovalInput{ModuleID: "vfs", Capability: "apply"})
	}()

	require.Eventually(t, func() bool { return len(g.Pending()) == 1 }, time.Second, time.Millisecond)
	id := g.Pending()[0].ApprovalID
	require.NoError(t, g.Approve(id, nil))

	require.Eventually(t, func() bool {
		err := g.Approve(id, nil)
		return err != nil
	}, time.Second, time.Millisecond)
}

func TestHistoryRingIsBoundedAt50(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil)
	g.RegisterModule("vfs", "apply")

	for i := 0; i < 60; i++ {
		go func() {
			_, _ = g.RequestApproval(context.Background(), RequestApprovalInput{ModuleID: "vfs", Capability: "apply"})
		}()
		require.Eventually(t, func() bool { return len(g.Pending()) == 1 }, time.Second, time.Millisecond)
		id := g.Pending()[0].ApprovalID
		require.NoError(t, g.Approve(id, nil))
	}

	require.Eventually(t, func() bool { return len(g.History(100)) == historyCapacity }, time.Second, time.Millisecond)
}
