// Package eventbus implements the event contract from §6: a pub/sub surface
// observers use to watch cycle and approval lifecycle events. Per §9's
// redesign note, emission is a synchronous, non-blocking broadcast over a
// multi-producer multi-consumer channel with a dropped-slow-subscriber
// policy — a single stalled observer never backs up the FSM driver.
package eventbus

import (
	"sync"

	"github.com/sentinel-cycle/engine/internal/logging"
)

// Kind is a closed enumeration of the event names in §6's event contract
// (per §9: "represent event kinds... as closed enumerations; string forms
// exist only at the serialisation boundary").
type Kind string

const (
	KindCycleStarted        Kind = "cycle:started"
	KindAgentCurating       Kind = "agent:curating"
	KindAwaitingContext     Kind = "agent:awaiting:context"
	KindAwaitingProposal    Kind = "agent:awaiting:proposal"
	KindCycleApplying       Kind = "cycle:applying"
	KindCycleVerifying      Kind = "cycle:verifying"
	KindCycleCommitted      Kind = "cycle:committed"
	KindCycleRolledBack     Kind = "cycle:rolled_back"
	KindCycleDone           Kind = "cycle:done"
	KindCycleFailed         Kind = "cycle:failed"
	KindCycleCancelled      Kind = "cycle:cancelled"
	KindApprovalPending     Kind = "approval:pending"
	KindApprovalResolved    Kind = "approval:resolved"
)

// Event is one immutable lifecycle notification.
type Event struct {
	Kind    Kind
	Payload map[string]any
}

const subscriberBuffer = 32

// Bus is a multi-producer multi-consumer broadcaster. The zero value is not
// usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	logger      logging.Logger
}

// New constructs an empty Bus.
func New(logger logging.Logger) *Bus {
	return &Bus{
		subscribers: map[int]chan Event{},
		logger:      logging.OrNop(logger).With("eventbus"),
	}
}

// Subscription is returned by Subscribe; call Unsubscribe when done.
type Subscription struct {
	id     int
	Events <-chan Event
	bus    *Bus
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if ch, ok := s.bus.subscribers[s.id]; ok {
		delete(s.bus.subscribers, s.id)
		close(ch)
	}
}

// Subscribe registers a new observer with a bounded buffer.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch
	return &Subscription{id: id, Events: ch, bus: b}
}

// Emit implements approval.EventSink (the FSM driver publishes typed Events
// through Publish): it broadcasts to every subscriber without blocking. A
// subscriber whose buffer is full is dropped for this event (policy: drop
// the slow subscriber, never stall the producer).
func (b *Bus) Emit(kind string, payload any) {
	fields, _ := payload.(map[string]any)
	b.publish(Event{Kind: Kind(kind), Payload: fields})
}

// Publish broadcasts a strongly-typed Event.
func (b *Bus) Publish(evt Event) {
	b.publish(evt)
}

func (b *Bus) publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("subscriber %d too slow, dropping event %s", id, evt.Kind)
		}
	}
}
