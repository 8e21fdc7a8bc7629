package shell

import (
	"log/slog"
	"sync"
)

// Topics carried on the bus.
const (
	// TopicCodeReceived is emitted by the auth surface when it detects an
	// authorization code in its own location. Payload: Code, and State when
	// the surface saw one.
	TopicCodeReceived = "oauth-code-received"

	// TopicAuthSuccess is emitted once a login session reaches its
	// authenticated terminal state, so the primary surface can navigate to
	// the protected view.
	TopicAuthSuccess = "oauth-success"
)

// Event is a message passed between surfaces.
type Event struct {
	Topic   string
	Code    string
	State   string
	Message string
}

// subscriberBuffer bounds each subscriber channel. Publish never blocks;
// an event for a full subscriber is dropped with a warning.
const subscriberBuffer = 8

// Bus is an in-process publish/subscribe event bus. Cross-process surfaces
// reach it through the ipc relay, which republishes their events locally.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event // topic -> subscriber id -> channel
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers interest in a topic. The returned cancel function
// removes the subscription and closes the channel; it is safe to call more
// than once.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[topic]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
			}
		})
	}

	return ch, cancel
}

// Publish delivers an event to every current subscriber of its topic.
// Delivery is best-effort and never blocks the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			slog.Warn("event bus subscriber full, dropping event", "topic", ev.Topic)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
	}
}
