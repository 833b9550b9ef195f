package notify

import (
	"context"
	"sync"
)

// Publisher delivers an event to a realtime channel. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broker is an in-process pub/sub hub keyed by recipient, feeding the SSE
// stream endpoint. Slow subscribers are skipped rather than blocked.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

// NewBroker constructs an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for the given recipient. The stream is removed
// when the context ends or the returned cleanup is called.
func (b *Broker) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	if userID == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     b.nextSequence(),
		stream: make(chan Event, b.bufferSize),
	}
	b.register(userID, sub)
	cleanup := func() {
		b.unregister(userID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish fans the event out to every live stream of its recipient.
func (b *Broker) Publish(_ context.Context, event Event) error {
	if event.UserID == "" || event.Kind == "" {
		return nil
	}
	b.mu.RLock()
	subscribers := b.subscribers[event.UserID]
	if len(subscribers) == 0 {
		b.mu.RUnlock()
		return nil
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	b.mu.RUnlock()
	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
	return nil
}

func (b *Broker) nextSequence() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *Broker) register(userID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[int64]*subscriber)
	}
	b.subscribers[userID][sub.id] = sub
}

func (b *Broker) unregister(userID string, subscriberID int64) {
	b.mu.Lock()
	subscribers := b.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
	b.mu.Unlock()
}
