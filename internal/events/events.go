// Package events implements the daemon's best-effort event subscription
// contract: connections subscribe to named events and receive a fan-out
// publication shaped as {event, meta, data, time}, with no delivery
// guarantee beyond the broadcaster's own buffered best-effort semantics.
package events

import (
	"sync"
	"time"

	"github.com/jg-phare/mcslauncherd/internal/broadcast"
)

// Event is one published occurrence.
type Event struct {
	Name string          `json:"event"`
	Meta map[string]any  `json:"meta,omitempty"`
	Data any             `json:"data,omitempty"`
	Time time.Time       `json:"time"`
}

// Bus fans events out to every current subscriber, regardless of which
// event names they subscribed to; filtering by name happens at the
// subscriber (see Subscription).
type Bus struct {
	ch *broadcast.Channel[Event]
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{ch: broadcast.New[Event]()}
}

// Publish emits name with meta/data, stamped with the current time.
func (b *Bus) Publish(name string, meta map[string]any, data any) {
	b.ch.Send(Event{Name: name, Meta: meta, Data: data, Time: time.Now()})
}

// Subscription is a per-connection filter over the bus's events. Add and
// Remove may be called from any goroutine.
type Subscription struct {
	bus   *Bus
	raw   <-chan Event
	unsub func()

	mu    sync.Mutex
	names map[string]bool
}

// Subscribe opens a Subscription with no event names selected yet; use
// Add/Remove to manage which names this subscriber receives.
func (b *Bus) Subscribe(buffer int) *Subscription {
	raw, unsub := b.ch.Subscribe(buffer)
	return &Subscription{bus: b, raw: raw, unsub: unsub, names: map[string]bool{}}
}

// Add starts delivering events named name to this subscription.
func (s *Subscription) Add(name string) {
	s.mu.Lock()
	s.names[name] = true
	s.mu.Unlock()
}

// Remove stops delivering events named name to this subscription.
func (s *Subscription) Remove(name string) {
	s.mu.Lock()
	delete(s.names, name)
	s.mu.Unlock()
}

func (s *Subscription) wants(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[name]
}

// Events returns a channel of events matching this subscription's current
// name filter. The filtering happens per receive, so Add/Remove calls take
// effect immediately on the next delivered event.
func (s *Subscription) Events() <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for ev := range s.raw {
			if s.wants(ev.Name) {
				out <- ev
			}
		}
	}()
	return out
}

// Close ends the subscription.
func (s *Subscription) Close() { s.unsub() }
