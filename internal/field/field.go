package field

import (
	"context"
	"sync"
	"time"

	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/pubsub"
)

// DefaultHistoryCapacity bounds the event history when no capacity is
// configured. Oldest events are evicted past the bound.
const DefaultHistoryCapacity = 1000

// Handler receives a matching event during synchronous dispatch.
type Handler func(Event)

type subscription struct {
	id      uint64
	pattern string
	handler Handler
}

// Field is the semantic event field. Publish delivers synchronously to every
// subscriber whose pattern matches, in registration order, within the
// calling goroutine. A panicking handler is recovered and logged; it never
// blocks delivery to the remaining subscribers.
type Field struct {
	mu       sync.Mutex
	subs     []subscription
	nextID   uint64
	history  []Event
	capacity int
	total    uint64
	byDomain map[string]uint64
	lastAt   time.Time

	// stream bridges published events to channel subscribers.
	stream *pubsub.Broker[Event]
}

// New creates a field with the given history capacity.
// Non-positive capacities fall back to DefaultHistoryCapacity.
func New(capacity int) *Field {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Field{
		capacity: capacity,
		byDomain: make(map[string]uint64),
		stream:   pubsub.NewBroker[Event](),
	}
}

// Subscribe registers a handler for every event whose type matches pattern.
// The returned function removes the subscription; calling it more than once
// is harmless. Delivery order follows subscription registration order.
func (f *Field) Subscribe(pattern string, handler Handler) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscription{id: id, pattern: pattern, handler: handler})
	f.mu.Unlock()

	log.Debug(log.CatField, "subscriber registered", "pattern", pattern, "id", id)

	var once sync.Once
	return func() {
		once.Do(func() { f.unsubscribe(id) })
	}
}

func (f *Field) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

// Publish appends the event to history, evicting the oldest entry past
// capacity, then synchronously invokes every matching subscriber. The
// subscriber set is snapshotted at call time: handlers that subscribe or
// unsubscribe mid-delivery affect later publishes, not this one. Publish
// never propagates a handler panic.
func (f *Field) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	f.mu.Lock()
	f.history = append(f.history, evt)
	if len(f.history) > f.capacity {
		f.history = f.history[len(f.history)-f.capacity:]
	}
	f.total++
	f.byDomain[evt.Domain()]++
	f.lastAt = evt.Timestamp

	snapshot := make([]subscription, len(f.subs))
	copy(snapshot, f.subs)
	f.mu.Unlock()

	for _, sub := range snapshot {
		if !MatchPattern(sub.pattern, evt.Type) {
			continue
		}
		f.dispatch(sub, evt)
	}

	f.stream.Publish(pubsub.TopicPublished, evt)
}

func (f *Field) dispatch(sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatField, "subscriber panic recovered",
				"pattern", sub.pattern, "eventType", evt.Type, "panic", r)
		}
	}()
	sub.handler(evt)
}

// Stream returns a channel feed of every published event. The channel closes
// when ctx is cancelled or the field shuts down. Stream consumers observe
// events after synchronous dispatch completes and may lag under load.
func (f *Field) Stream(ctx context.Context) <-chan pubsub.Notification[Event] {
	return f.stream.Subscribe(ctx)
}

// Close shuts down the stream bridge. Synchronous subscriptions stay usable;
// Close only affects channel consumers.
func (f *Field) Close() {
	f.stream.Close()
}

// SubscriberCount returns the number of registered synchronous subscribers.
func (f *Field) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// History returns a copy of the retained events, oldest first.
func (f *Field) History() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.history))
	copy(out, f.history)
	return out
}

// Statistics is a point-in-time summary of field activity, consumed by the
// integrity service's congestion and stagnation checks.
type Statistics struct {
	TotalPublished  uint64
	RecentCount     int
	HistoryCapacity int
	SubscriberCount int
	PerDomain       map[string]uint64
	LastPublishedAt time.Time
}

// Stats returns current field statistics.
func (f *Field) Stats() Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()

	perDomain := make(map[string]uint64, len(f.byDomain))
	for d, n := range f.byDomain {
		perDomain[d] = n
	}

	return Statistics{
		TotalPublished:  f.total,
		RecentCount:     len(f.history),
		HistoryCapacity: f.capacity,
		SubscriberCount: len(f.subs),
		PerDomain:       perDomain,
		LastPublishedAt: f.lastAt,
	}
}
