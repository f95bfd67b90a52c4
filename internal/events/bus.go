package events

import (
	"sync"

	"github.com/ashmit2704/taskboard/internal/logging"
)

// subscriberBuffer is the per-connection event buffer. A subscriber that
// falls this far behind starts losing events (at-most-once delivery).
const subscriberBuffer = 64

// Bus fans events out to subscribed connections. Publish never blocks and
// never fails: a full subscriber buffer drops the event for that subscriber
// only. Events published from one goroutine arrive at each subscriber in
// publish order.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe registers a connection and returns its subscription. The returned
// channel is an infinite, non-restartable sequence of events, terminated by
// Close. Subscribing twice with the same connID replaces the old subscription.
func (b *Bus) Subscribe(connID string) *Subscription {
	sub := &Subscription{
		connID: connID,
		ch:     make(chan Event, subscriberBuffer),
		bus:    b,
	}

	b.mu.Lock()
	if old, ok := b.subs[connID]; ok {
		old.closeLocked()
	}
	b.subs[connID] = sub
	b.mu.Unlock()

	return sub
}

// Publish delivers the event to every subscription except the origin
// connection. Best-effort: slow subscribers drop events rather than block
// the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for connID, sub := range b.subs {
		if ev.Origin != "" && connID == ev.Origin {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			logging.Warn("dropping event for slow subscriber", logging.Fields{
				"conn_id": connID,
				"kind":    string(ev.Kind),
			})
		}
	}
}

// SubscriberCount returns the number of connected subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.subs[sub.connID]; ok && current == sub {
		delete(b.subs, sub.connID)
	}
	sub.closeLocked()
}

// Subscription is one connection's view of the bus. Callers must Close it on
// disconnect; that is the only thing that terminates the event sequence.
type Subscription struct {
	connID string
	ch     chan Event
	bus    *Bus
	once   sync.Once
}

// ConnID returns the connection this subscription belongs to.
func (s *Subscription) ConnID() string {
	return s.connID
}

// Events returns the channel of events. Closed when the subscription closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the bus and closes the event channel.
// Safe to call multiple times.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() { close(s.ch) })
}
