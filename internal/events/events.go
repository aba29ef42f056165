// Package events carries roster notifications from the model to whoever
// registered interest: the UI, the pounce manager, the system log.
package events

import (
	"sync"
)

// EventType represents the type of event
type EventType int

const (
	BuddyAdded EventType = iota
	BuddyRemoved
	BuddySignedOn
	BuddySignedOff
	BuddyStatusChanged
	BuddyIdleChanged
	BuddyIconChanged
	NodeAliased
	AccountAdded
	AccountRemoved
	AccountEnabled
	AccountDisabled
	AccountConnected
	AccountDisconnected
	AccountStatusChanged
	PounceTriggered
)

var eventNames = map[EventType]string{
	BuddyAdded:           "buddy-added",
	BuddyRemoved:         "buddy-removed",
	BuddySignedOn:        "buddy-signed-on",
	BuddySignedOff:       "buddy-signed-off",
	BuddyStatusChanged:   "buddy-status-changed",
	BuddyIdleChanged:     "buddy-idle-changed",
	BuddyIconChanged:     "buddy-icon-changed",
	NodeAliased:          "blist-node-aliased",
	AccountAdded:         "account-added",
	AccountRemoved:       "account-removed",
	AccountEnabled:       "account-enabled",
	AccountDisabled:      "account-disabled",
	AccountConnected:     "account-connected",
	AccountDisconnected:  "account-disconnected",
	AccountStatusChanged: "account-status-changed",
	PounceTriggered:      "pounce-triggered",
}

// String returns the signal name of the event type
func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

// EventMsg is a single notification. Data holds the payload type
// documented by the publisher for that EventType.
type EventMsg struct {
	Type EventType
	Data interface{}
}

// EventHandler is a function that handles events
type EventHandler func(event EventMsg)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus handles event subscription and publishing. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscription
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe subscribes to an event type and returns an id usable with
// Cancel.
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

// Publish delivers an event to all subscribers. A nil bus discards it.
func (b *EventBus) Publish(event EventMsg) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Emit is shorthand for Publish(EventMsg{Type: t, Data: data})
func (b *EventBus) Emit(t EventType, data interface{}) {
	b.Publish(EventMsg{Type: t, Data: data})
}

// Cancel removes a single subscription
func (b *EventBus) Cancel(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.handlers {
		for i, s := range subs {
			if s.id == id {
				b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Unsubscribe removes all handlers for an event type
func (b *EventBus) Unsubscribe(eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, eventType)
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscription)
}
