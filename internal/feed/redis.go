package feed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisFeed publishes room changes on Redis pub/sub so several server processes
// sharing a store see each other's writes.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisFeed creates a feed on the given client
func NewRedisFeed(client *redis.Client, logger zerolog.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		prefix: "wordgame:room:",
		logger: logger.With().Str("component", "redisfeed").Logger(),
	}
}

func (f *RedisFeed) channel(code string) string {
	return fmt.Sprintf("%s%s", f.prefix, code)
}

// Publish announces a change to a room
func (f *RedisFeed) Publish(ctx context.Context, roomCode string) error {
	return f.client.Publish(ctx, f.channel(roomCode), roomCode).Err()
}

// Subscribe subscribes to a room's channel. The subscription is confirmed
// before returning so no publish made afterwards is missed.
func (f *RedisFeed) Subscribe(ctx context.Context, roomCode string) (<-chan Event, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(roomCode))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	out := make(chan Event, 10)
	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Warn().Err(err).Str("room", roomCode).Msg("subscription lost")
				}
				return
			}
			select {
			case out <- Event{Type: EventRoomChanged, RoomCode: msg.Payload}:
			default:
			}
		}
	}()
	return out, nil
}

// Ping checks the connection to Redis
func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

var (
	_ Subscriber = (*RedisFeed)(nil)
	_ Publisher  = (*RedisFeed)(nil)
)
