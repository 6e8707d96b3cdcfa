package feed

import (
	"context"
	"errors"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// Mode is how a watcher currently learns about changes
type Mode string

const (
	ModeAuto Mode = "auto"
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// RoomGetter reads room snapshots
type RoomGetter interface {
	GetRoom(ctx context.Context, code string) (*game.Room, error)
}

// Update is one observation of a watched room. Err is game.ErrNotFound once the
// room is gone; no further updates follow it.
type Update struct {
	Room *game.Room
	Mode Mode
	Err  error
}

// WatcherConfig tunes a Watcher
type WatcherConfig struct {
	// Mode is auto (push with poll fallback), push or poll
	Mode         Mode
	PollInterval time.Duration
	// RetryInterval is how long a watcher polls before trying to
	// subscribe again after the push channel failed
	RetryInterval time.Duration
}

// Watcher produces a stream of distinct room snapshots. Every event triggers a
// full re-read, and snapshots equal to the last one sent are dropped, so a
// missed or duplicated event never leaves a client on stale state for longer
// than one poll interval.
type Watcher struct {
	rooms  RoomGetter
	sub    Subscriber
	cfg    WatcherConfig
	logger zerolog.Logger
}

// NewWatcher creates a watcher. sub may be nil, in which case rooms are polled.
func NewWatcher(rooms RoomGetter, sub Subscriber, cfg WatcherConfig, logger zerolog.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if sub == nil {
		cfg.Mode = ModePoll
	}
	return &Watcher{
		rooms:  rooms,
		sub:    sub,
		cfg:    cfg,
		logger: logger.With().Str("component", "watcher").Logger(),
	}
}

// Watch streams snapshots of a room until ctx ends or the room is deleted. The
// first update is the room as it is now.
func (w *Watcher) Watch(ctx context.Context, code string) <-chan Update {
	out := make(chan Update, 1)
	go w.run(ctx, code, out)
	return out
}

func (w *Watcher) run(ctx context.Context, code string, out chan<- Update) {
	defer close(out)

	var last *game.Room
	mode := ModePoll

	// refresh re-reads the room and reports whether watching should stop
	refresh := func() bool {
		room, err := w.rooms.GetRoom(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			if errors.Is(err, game.ErrNotFound) {
				w.send(ctx, out, Update{Mode: mode, Err: err})
				return true
			}
			w.logger.Warn().Err(err).Str("room", code).Msg("refresh failed")
			return false
		}
		if last != nil && cmp.Equal(last, room) {
			return false
		}
		last = room
		return !w.send(ctx, out, Update{Room: room, Mode: mode})
	}

	if refresh() {
		return
	}

	for {
		if w.cfg.Mode != ModePoll {
			events, err := w.sub.Subscribe(ctx, code)
			if err == nil {
				mode = ModePush
				// catch writes made between the first read and the subscription
				if refresh() {
					return
				}
				if w.drain(ctx, events, refresh) {
					return
				}
				w.logger.Debug().Str("room", code).Msg("push channel closed, polling")
			} else {
				w.logger.Debug().Err(err).Str("room", code).Msg("subscribe failed, polling")
			}
			mode = ModePoll
		}

		if w.poll(ctx, refresh) {
			return
		}
	}
}

// drain handles push events until the subscription ends. It reports whether
// watching should stop.
func (w *Watcher) drain(ctx context.Context, events <-chan Event, refresh func() bool) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case _, ok := <-events:
			if !ok {
				return ctx.Err() != nil
			}
			if refresh() {
				return true
			}
		}
	}
}

// poll re-reads on every poll interval. In poll-only mode it runs until watching
// stops; otherwise it returns false after RetryInterval so the caller can try to
// subscribe again.
func (w *Watcher) poll(ctx context.Context, refresh func() bool) bool {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	var retry <-chan time.Time
	if w.cfg.Mode != ModePoll {
		timer := time.NewTimer(w.cfg.RetryInterval)
		defer timer.Stop()
		retry = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case <-retry:
			return false
		case <-ticker.C:
			if refresh() {
				return true
			}
		}
	}
}

func (w *Watcher) send(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
