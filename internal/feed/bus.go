package feed

import (
	"context"
	"sync"
)

// Bus is an in-process fan-out of room events. It is both the Publisher and the
// Subscriber of the memory backend, and the local fan-out behind PGListener.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	buffer      int
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
		buffer:      10,
	}
}

// Subscribe subscribes to events for a room until ctx ends
func (b *Bus) Subscribe(ctx context.Context, roomCode string) (<-chan Event, error) {
	b.mu.Lock()
	ch := make(chan Event, b.buffer)
	b.subscribers[roomCode] = append(b.subscribers[roomCode], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(roomCode, ch)
	}()
	return ch, nil
}

func (b *Bus) unsubscribe(roomCode string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[roomCode]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[roomCode] = append(subs[:i], subs[i+1:]...)
			if len(b.subscribers[roomCode]) == 0 {
				delete(b.subscribers, roomCode)
			}
			close(ch)
			return
		}
	}
}

// Publish sends a change event to every subscriber of the room. Subscribers
// with a full buffer miss the event; they already have a re-read pending.
func (b *Bus) Publish(ctx context.Context, roomCode string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Type: EventRoomChanged, RoomCode: roomCode}
	for _, ch := range b.subscribers[roomCode] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// CloseAll ends every current subscription
func (b *Bus) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for code, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, code)
	}
}

// SubscriberCount returns the number of subscriptions for a room
func (b *Bus) SubscriberCount(roomCode string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[roomCode])
}

var (
	_ Subscriber = (*Bus)(nil)
	_ Publisher  = (*Bus)(nil)
)
