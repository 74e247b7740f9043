// Package events is the synchronous in-process publish/subscribe bus the
// match uses to notify observers. Handlers run inline in subscription order.
package events

import "sync"

// Kind names an observable notification.
type Kind string

const (
	ActorElected   Kind = "actor_elected"
	TurnStarted    Kind = "turn_started"
	TurnEnded      Kind = "turn_ended"
	TurnSkipped    Kind = "turn_skipped"
	EntityJoined   Kind = "entity_joined"
	EntityMoved    Kind = "entity_moved"
	EntityRemoved  Kind = "entity_removed"
	EntityDefeated Kind = "entity_defeated"
	ClashResolved  Kind = "clash_resolved"

	// ActionCommitted carries the committed action in the form mirrors
	// replay; attacks are published as resolve_attacks.
	ActionCommitted Kind = "action_committed"

	StatusApplied Kind = "status_applied"
	StatusRemoved Kind = "status_removed"
	StyleSwitched Kind = "style_switched"
	MatchEnded    Kind = "match_ended"
)

// Event is one notification. Payload types are documented per kind by the
// publisher.
type Event struct {
	Kind    Kind   `json:"kind"`
	Turn    uint64 `json:"turn"`
	Actor   int64  `json:"actor,omitempty"`
	Target  int64  `json:"target,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	kind    Kind
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
	next uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for kind; the empty kind receives every event.
// The returned function removes the subscription.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	if b == nil || handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to matching subscribers inline. Subscriptions added
// by a handler take effect from the next Publish.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()
	for _, sub := range subs {
		if sub.kind != "" && sub.kind != event.Kind {
			continue
		}
		sub.handler(event)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
