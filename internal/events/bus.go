// Package events delivers task run notifications to observers.
package events

import (
	"sync"
	"time"
)

type EventType string

const (
	// EventStateChanged is published when a task's run state changes.
	EventStateChanged EventType = "state_changed"
	// EventProgress is published when a task's run progress changes.
	EventProgress EventType = "progress"
	// EventDetails is published when a task's run details change.
	EventDetails EventType = "details"
)

// Event carries a snapshot of the run at the time of the change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Task      string
	RunID     string
	State     string
	Progress  int
	Details   string
}

type Subscriber func(Event)

type subscription struct {
	id    uint64
	types map[EventType]bool
	fn    Subscriber
}

// Bus calls subscribers synchronously, in subscription order, on the
// publishing goroutine. A panicking subscriber is recovered and does not
// prevent delivery to the others.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	onPanic func(any)
}

func NewBus() *Bus {
	return &Bus{}
}

// OnPanic sets a hook called with the recovered value when a subscriber panics.
func (b *Bus) OnPanic(fn func(any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = fn
}

// Subscribe registers fn for the given types, or for every type when none
// are given. It returns an unsubscribe function.
func (b *Bus) Subscribe(fn Subscriber, types ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, fn: fn}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every matching subscriber before returning.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	onPanic := b.onPanic
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil && !s.types[e.Type] {
			continue
		}
		deliver(s.fn, e, onPanic)
	}
}

func deliver(fn Subscriber, e Event, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn(e)
}

// Len reports the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
