// Package liveness garbage-collects abandoned rooms and players. Game
// correctness never depends on it; it only reclaims what nobody will use again.
package liveness

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// Rooms is the store access a sweep needs
type Rooms interface {
	ListRooms(ctx context.Context) ([]*game.Room, error)
	DeleteRoom(ctx context.Context, code string) error
}

// Remover takes a player out of their room, promoting a new admin or deleting
// the room as needed. *session.Engine implements it.
type Remover interface {
	RemovePlayer(ctx context.Context, code, playerID string) (*game.Room, error)
}

// Config tunes the sweep
type Config struct {
	Interval      time.Duration
	PlayerTimeout time.Duration
	RoomTimeout   time.Duration
}

// DefaultConfig sweeps every 30 seconds, dropping players silent for 2 minutes
// and rooms idle for 2 hours
func DefaultConfig() Config {
	return Config{
		Interval:      30 * time.Second,
		PlayerTimeout: 2 * time.Minute,
		RoomTimeout:   2 * time.Hour,
	}
}

// Report counts what one sweep removed
type Report struct {
	RoomsDeleted   int
	PlayersRemoved int
}

// Tracker periodically sweeps the store
type Tracker struct {
	rooms   Rooms
	players Remover
	cfg     Config
	now     func() time.Time
	logger  zerolog.Logger
}

// NewTracker creates a tracker
func NewTracker(rooms Rooms, players Remover, cfg Config, logger zerolog.Logger) *Tracker {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.PlayerTimeout <= 0 {
		cfg.PlayerTimeout = defaults.PlayerTimeout
	}
	if cfg.RoomTimeout <= 0 {
		cfg.RoomTimeout = defaults.RoomTimeout
	}
	return &Tracker{
		rooms:   rooms,
		players: players,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With().Str("component", "liveness").Logger(),
	}
}

// SetClock replaces the time source used by Run
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Run sweeps on every interval until ctx is cancelled
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.logger.Info().
		Dur("interval", t.cfg.Interval).
		Dur("player_timeout", t.cfg.PlayerTimeout).
		Dur("room_timeout", t.cfg.RoomTimeout).
		Msg("liveness sweep started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := t.Sweep(ctx, t.now())
			if err != nil {
				t.logger.Error().Err(err).Msg("sweep failed")
				continue
			}
			if report.RoomsDeleted > 0 || report.PlayersRemoved > 0 {
				t.logger.Info().
					Int("rooms_deleted", report.RoomsDeleted).
					Int("players_removed", report.PlayersRemoved).
					Msg("sweep finished")
			}
		}
	}
}

// Sweep deletes rooms idle for longer than the room timeout and removes players
// whose last heartbeat is older than the player timeout. A failure on one room
// does not stop the others; the first error is returned.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) (Report, error) {
	var report Report
	rooms, err := t.rooms.ListRooms(ctx)
	if err != nil {
		return report, err
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, room := range rooms {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		if now.Sub(room.LastActivityAt) > t.cfg.RoomTimeout {
			if err := t.rooms.DeleteRoom(ctx, room.Code); err != nil {
				keep(err)
				continue
			}
			report.RoomsDeleted++
			t.logger.Debug().Str("room", room.Code).Time("last_activity", room.LastActivityAt).Msg("idle room deleted")
			continue
		}

		for _, p := range room.Players {
			if !p.IsStale(now, t.cfg.PlayerTimeout) {
				continue
			}
			_, err := t.players.RemovePlayer(ctx, room.Code, p.ID)
			switch {
			case errors.Is(err, game.ErrNotFound):
				// already gone
			case err != nil:
				keep(err)
			default:
				report.PlayersRemoved++
				t.logger.Debug().Str("room", room.Code).Str("player", p.ID).Msg("stale player removed")
			}
		}
	}
	return report, firstErr
}
