// Package feed carries room change notifications from the store to watching
// clients. A notification only names the room that changed; receivers always
// re-read the full room from the store.
package feed

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Subscribe when the push channel cannot be used
// right now. Callers fall back to polling.
var ErrUnavailable = errors.New("change feed unavailable")

// Event represents a change to one room
type Event struct {
	Type     string
	RoomCode string
}

const EventRoomChanged = "room_changed"

// Subscriber delivers change events for a room. The returned channel is closed
// when ctx ends or when the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context, roomCode string) (<-chan Event, error)
}

// Publisher announces that a room changed
type Publisher interface {
	Publish(ctx context.Context, roomCode string) error
}
