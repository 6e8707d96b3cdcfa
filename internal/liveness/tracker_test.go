package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/session"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*session.Engine, *store.MemoryStore, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemoryStore()
	s.SetClock(c.Now)
	e := session.NewEngine(s, game.DefaultWordBank(), session.DefaultOptions(), zerolog.Nop())
	e.SetClock(c.Now)
	return e, s, c
}

func TestTracker_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("removes silent players and promotes a new admin", func(t *testing.T) {
		engine, rooms, c := setup(t)
		room, alice, err := engine.CreateRoom(ctx, "ROOM42", "Alice")
		require.NoError(t, err)
		_, bob, err := engine.JoinRoom(ctx, room.Code, "Bob")
		require.NoError(t, err)

		c.Advance(90 * time.Second)
		_, err = engine.Heartbeat(ctx, room.Code, bob)
		require.NoError(t, err)
		c.Advance(45 * time.Second)

		tracker := NewTracker(rooms, engine, DefaultConfig(), zerolog.Nop())
		report, err := tracker.Sweep(ctx, c.Now())
		require.NoError(t, err)
		assert.Equal(t, Report{PlayersRemoved: 1}, report)

		room, err = engine.GetRoom(ctx, room.Code)
		require.NoError(t, err)
		assert.Nil(t, room.GetPlayer(alice))
		require.Len(t, room.Players, 1)
		assert.True(t, room.GetPlayer(bob).IsAdmin)
	})

	t.Run("last silent player takes the room with them", func(t *testing.T) {
		engine, rooms, c := setup(t)
		room, _, err := engine.CreateRoom(ctx, "ROOM42", "Alice")
		require.NoError(t, err)

		c.Advance(3 * time.Minute)
		tracker := NewTracker(rooms, engine, DefaultConfig(), zerolog.Nop())
		report, err := tracker.Sweep(ctx, c.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, report.PlayersRemoved)

		_, err = rooms.GetRoom(ctx, room.Code)
		assert.ErrorIs(t, err, game.ErrNotFound)
	})

	t.Run("idle rooms are deleted", func(t *testing.T) {
		engine, rooms, c := setup(t)
		_, _, err := engine.CreateRoom(ctx, "IDLE01", "Alice")
		require.NoError(t, err)
		c.Advance(3 * time.Hour)
		_, _, err = engine.CreateRoom(ctx, "BUSY01", "Bob")
		require.NoError(t, err)

		tracker := NewTracker(rooms, engine, DefaultConfig(), zerolog.Nop())
		report, err := tracker.Sweep(ctx, c.Now())
		require.NoError(t, err)
		assert.Equal(t, Report{RoomsDeleted: 1}, report)

		_, err = rooms.GetRoom(ctx, "IDLE01")
		assert.ErrorIs(t, err, game.ErrNotFound)
		_, err = rooms.GetRoom(ctx, "BUSY01")
		assert.NoError(t, err)
	})

	t.Run("active rooms are left alone", func(t *testing.T) {
		engine, rooms, c := setup(t)
		_, _, err := engine.CreateRoom(ctx, "ROOM42", "Alice")
		require.NoError(t, err)
		c.Advance(time.Minute)

		tracker := NewTracker(rooms, engine, DefaultConfig(), zerolog.Nop())
		report, err := tracker.Sweep(ctx, c.Now())
		require.NoError(t, err)
		assert.Zero(t, report)
	})
}

type brokenRooms struct {
	listErr   error
	deleteErr error
	rooms     []*game.Room
}

func (b *brokenRooms) ListRooms(context.Context) ([]*game.Room, error) {
	return b.rooms, b.listErr
}

func (b *brokenRooms) DeleteRoom(context.Context, string) error {
	return b.deleteErr
}

type removerFunc func(ctx context.Context, code, playerID string) (*game.Room, error)

func (f removerFunc) RemovePlayer(ctx context.Context, code, playerID string) (*game.Room, error) {
	return f(ctx, code, playerID)
}

func TestTracker_SweepErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	noRemove := removerFunc(func(context.Context, string, string) (*game.Room, error) {
		t.Fatal("unexpected removal")
		return nil, nil
	})

	t.Run("list failure", func(t *testing.T) {
		boom := errors.New("db down")
		tracker := NewTracker(&brokenRooms{listErr: boom}, noRemove, DefaultConfig(), zerolog.Nop())
		_, err := tracker.Sweep(ctx, now)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("one failure does not stop the sweep", func(t *testing.T) {
		stale := now.Add(-time.Hour)
		rooms := &brokenRooms{
			deleteErr: game.ErrStore,
			rooms: []*game.Room{
				{Code: "OLD001", LastActivityAt: now.Add(-3 * time.Hour)},
				{Code: "ROOM42", LastActivityAt: now, Players: []*game.Player{
					{ID: "gone", LastSeenAt: stale},
					{ID: "stale", LastSeenAt: stale},
					{ID: "fresh", LastSeenAt: now},
				}},
			},
		}
		var removed []string
		tracker := NewTracker(rooms, removerFunc(func(_ context.Context, _, id string) (*game.Room, error) {
			if id == "gone" {
				return nil, game.ErrNotFound
			}
			removed = append(removed, id)
			return &game.Room{}, nil
		}), DefaultConfig(), zerolog.Nop())

		report, err := tracker.Sweep(ctx, now)
		assert.ErrorIs(t, err, game.ErrStore)
		assert.Equal(t, Report{PlayersRemoved: 1}, report)
		assert.Equal(t, []string{"stale"}, removed)
	})
}

func TestTracker_Run(t *testing.T) {
	engine, rooms, c := setup(t)
	_, _, err := engine.CreateRoom(context.Background(), "ROOM42", "Alice")
	require.NoError(t, err)
	c.Advance(time.Hour)

	tracker := NewTracker(rooms, engine, Config{Interval: 5 * time.Millisecond}, zerolog.Nop())
	tracker.SetClock(c.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := rooms.GetRoom(context.Background(), "ROOM42")
		return errors.Is(err, game.ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
