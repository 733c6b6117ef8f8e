package bus

import "sync"

// Topic names the closed set of events the sync layer publishes. The bus is a
// live-UI convenience layer only: no queuing, no delivery to late subscribers,
// nothing survives a process restart.
type Topic string

const (
	// TopicNotificationAdded fires after a foreground ingest lands a record.
	TopicNotificationAdded Topic = "notificationAdded"
	// TopicNotificationCountUpdated carries the same count under a distinct
	// name for subscribers that only render the badge number.
	TopicNotificationCountUpdated Topic = "notificationCountUpdated"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Topic Topic
	Count int64
}

// Handler consumes one event on the publisher's goroutine.
type Handler func(Event)

// Unsubscribe removes the subscription it was returned for. Safe to call more
// than once.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe registry.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[Topic][]subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{topics: map[Topic][]subscription{}}
}

// Subscribe registers a handler for the topic and returns its unsubscribe
// handle. Handlers run in subscription order.
func (b *Bus) Subscribe(topic Topic, handler Handler) Unsubscribe {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i, sub := range subs {
			if sub.id == id {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every currently subscribed handler for the topic on the
// calling goroutine. Publishing without subscribers drops the event silently.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.topics[event.Topic]))
	copy(subs, b.topics[event.Topic])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// PublishCount emits both count-bearing topics for a fresh aggregate count.
func (b *Bus) PublishCount(count int64) {
	b.Publish(Event{Topic: TopicNotificationAdded, Count: count})
	b.Publish(Event{Topic: TopicNotificationCountUpdated, Count: count})
}
