package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(Event{Kind: KindCycleStarted, Payload: map[string]any{"cycle_id": "c-1"}})

	select {
	case evt := <-sub.Events:
		require.Equal(t, KindCycleStarted, evt.Kind)
		require.Equal(t, "c-1", evt.Payload["cycle_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEmitSatisfiesApprovalEventSinkShape(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Emit("approval:pending", map[string]any{"approval_id": "a-1"})

	select {
	case evt := <-sub.Events:
		require.Equal(t, KindApprovalPending, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(Event{Kind: KindCycleStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events
	require.False(t, ok)
}
