package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store/migrations"
)

// PGListener turns Postgres notifications on the room change channel into
// local events. The rooms and players tables notify through triggers, so every
// write by any server process is seen here.
type PGListener struct {
	pool       *pgxpool.Pool
	bus        *Bus
	retryAfter time.Duration
	listening  atomic.Bool
	logger     zerolog.Logger
}

// NewPGListener creates a listener on the given pool
func NewPGListener(pool *pgxpool.Pool, retryAfter time.Duration, logger zerolog.Logger) *PGListener {
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &PGListener{
		pool:       pool,
		bus:        NewBus(),
		retryAfter: retryAfter,
		logger:     logger.With().Str("component", "pglistener").Logger(),
	}
}

// Run listens until ctx ends, reconnecting after failures. While disconnected
// Subscribe reports ErrUnavailable and existing subscriptions are closed.
func (l *PGListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		l.listening.Store(false)
		l.bus.CloseAll()
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Dur("retry_after", l.retryAfter).Msg("notification listener lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryAfter):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+migrations.NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.listening.Store(true)
	l.logger.Info().Str("channel", migrations.NotifyChannel).Msg("listening for room changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// the connection may still have LISTEN active
			conn.Conn().Close(context.Background())
			return err
		}
		l.bus.Publish(ctx, n.Payload)
	}
}

// Listening reports whether notifications are currently being received
func (l *PGListener) Listening() bool {
	return l.listening.Load()
}

// Subscribe subscribes to notifications for a room
func (l *PGListener) Subscribe(ctx context.Context, roomCode string) (<-chan Event, error) {
	if !l.Listening() {
		return nil, ErrUnavailable
	}
	return l.bus.Subscribe(ctx, roomCode)
}

var _ Subscriber = (*PGListener)(nil)
