// Package client keeps one connected player in sync with their room. A Session
// holds the latest snapshot, watches the room for changes, heartbeats on the
// player's behalf and hands admin snapshots to the phase timers.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/feed"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// ErrNotJoined is returned by actions made before joining a room
var ErrNotJoined = fmt.Errorf("%w: you are not in a room", game.ErrValidation)

// Engine is the part of the session engine a client drives
type Engine interface {
	CreateRoom(ctx context.Context, code, name string) (*game.Room, string, error)
	JoinRoom(ctx context.Context, code, name string) (*game.Room, string, error)
	GetRoom(ctx context.Context, code string) (*game.Room, error)
	UpdateSettings(ctx context.Context, code, playerID string, patch game.SettingsPatch) (*game.Room, error)
	StartGame(ctx context.Context, code, playerID string) (*game.Room, error)
	SubmitClue(ctx context.Context, code, playerID, clue string) (*game.Room, error)
	SubmitVote(ctx context.Context, code, voterID, targetID string) (*game.Room, error)
	Restart(ctx context.Context, code, playerID string) (*game.Room, error)
	RemovePlayer(ctx context.Context, code, playerID string) (*game.Room, error)
	Heartbeat(ctx context.Context, code, playerID string) (bool, error)
}

// RoomWatcher streams room snapshots
type RoomWatcher interface {
	Watch(ctx context.Context, code string) <-chan feed.Update
}

// Timers receives every snapshot so the admin's session can drive the phase
// countdowns. *session.Orchestrator implements it.
type Timers interface {
	Observe(room *game.Room, selfID string)
	Forget(code, selfID string)
}

// Status is the connection state shown to the player
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

// Config tunes a Session
type Config struct {
	HeartbeatInterval    time.Duration
	MaxHeartbeatFailures int
	// RequestTimeout bounds each background store call
	RequestTimeout time.Duration
}

// DefaultConfig heartbeats every 30 seconds and gives up after 3 misses
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    30 * time.Second,
		MaxHeartbeatFailures: 3,
		RequestTimeout:       5 * time.Second,
	}
}

// Session is one player's connection to a room
type Session struct {
	engine  Engine
	watcher RoomWatcher
	timers  Timers
	cfg     Config
	logger  zerolog.Logger

	mu       sync.Mutex
	code     string
	name     string
	playerID string
	room     *game.Room
	status   Status
	err      error
	failures int
	stop     context.CancelFunc
	wg       sync.WaitGroup
	updates  chan *game.Room
	closed   bool
}

// New creates a session. timers may be nil when this process does not run
// phase countdowns.
func New(engine Engine, watcher RoomWatcher, timers Timers, cfg Config, logger zerolog.Logger) *Session {
	defaults := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.MaxHeartbeatFailures <= 0 {
		cfg.MaxHeartbeatFailures = defaults.MaxHeartbeatFailures
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	return &Session{
		engine:  engine,
		watcher: watcher,
		timers:  timers,
		cfg:     cfg,
		logger:  logger.With().Str("component", "client").Logger(),
		status:  StatusConnecting,
		updates: make(chan *game.Room, 1),
	}
}

// Create opens a room as its admin, or reconnects the admin of an existing
// room with the same name
func (s *Session) Create(ctx context.Context, code, name string) error {
	room, id, err := s.engine.CreateRoom(ctx, code, name)
	if err != nil {
		return err
	}
	s.connect(room, id, name)
	return nil
}

// Join enters an existing room
func (s *Session) Join(ctx context.Context, code, name string) error {
	room, id, err := s.engine.JoinRoom(ctx, code, name)
	if err != nil {
		return err
	}
	s.connect(room, id, name)
	return nil
}

// Attach resumes a player already in the room, e.g. from a cookie
func (s *Session) Attach(ctx context.Context, code, playerID string) error {
	room, err := s.engine.GetRoom(ctx, game.NormalizeCode(code))
	if err != nil {
		return err
	}
	p := room.GetPlayer(playerID)
	if p == nil {
		return fmt.Errorf("%w: player %s not in room %s", game.ErrNotFound, playerID, room.Code)
	}
	if _, err := s.engine.Heartbeat(ctx, room.Code, playerID); err != nil {
		return err
	}
	s.connect(room, playerID, p.Name)
	return nil
}

// UpdateSettings changes the lobby settings (admin only)
func (s *Session) UpdateSettings(ctx context.Context, patch game.SettingsPatch) error {
	return s.act(func(code, id string) (*game.Room, error) {
		return s.engine.UpdateSettings(ctx, code, id, patch)
	})
}

// Start begins the game (admin only)
func (s *Session) Start(ctx context.Context) error {
	return s.act(func(code, id string) (*game.Room, error) {
		return s.engine.StartGame(ctx, code, id)
	})
}

// SubmitClue gives this round's clue
func (s *Session) SubmitClue(ctx context.Context, clue string) error {
	return s.act(func(code, id string) (*game.Room, error) {
		return s.engine.SubmitClue(ctx, code, id, clue)
	})
}

// SubmitVote votes for targetID
func (s *Session) SubmitVote(ctx context.Context, targetID string) error {
	return s.act(func(code, id string) (*game.Room, error) {
		return s.engine.SubmitVote(ctx, code, id, targetID)
	})
}

// Restart takes a finished game back to the lobby (admin only)
func (s *Session) Restart(ctx context.Context) error {
	return s.act(func(code, id string) (*game.Room, error) {
		return s.engine.Restart(ctx, code, id)
	})
}

// Leave removes the player from the room and forgets it
func (s *Session) Leave(ctx context.Context) error {
	code, id, ok := s.identity()
	if !ok {
		return ErrNotJoined
	}
	if _, err := s.engine.RemovePlayer(ctx, code, id); err != nil && !errors.Is(err, game.ErrNotFound) {
		return err
	}

	s.disconnect()
	s.mu.Lock()
	s.code, s.name, s.playerID, s.room = "", "", "", nil
	s.status, s.err, s.failures = StatusConnecting, nil, 0
	s.mu.Unlock()
	if s.timers != nil {
		s.timers.Forget(code, id)
	}
	return nil
}

// Retry reconnects after a lost connection. It runs the join path again with
// the player's name, which picks the same player back up when it still exists.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	code, name := s.code, s.name
	if code == "" {
		s.mu.Unlock()
		return ErrNotJoined
	}
	s.status = StatusConnecting
	s.failures = 0
	s.mu.Unlock()

	s.disconnect()
	room, id, err := s.engine.JoinRoom(ctx, code, name)
	if err != nil {
		s.fail(err)
		return err
	}
	s.connect(room, id, name)
	s.logger.Info().Str("room", code).Str("player", id).Msg("reconnected")
	return nil
}

// Snapshot returns a copy of the latest room state, or nil before joining
func (s *Session) Snapshot() *game.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil
	}
	return s.room.Clone()
}

// PlayerID is this session's player, empty before joining
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// RoomCode is the joined room, empty before joining
func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Status reports the connection state
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err is the connection problem to show the player. It stays until the next
// successful sync.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.Describe(s.err)
}

// Updates delivers the latest snapshot whenever it changes. Snapshots the
// reader had no time to take are replaced by newer ones. The channel is closed
// by Close.
func (s *Session) Updates() <-chan *game.Room {
	return s.updates
}

// Close stops the background loops. The player stays in the room until they
// leave or the liveness sweep removes them.
func (s *Session) Close() {
	s.disconnect()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
	if s.timers != nil && s.code != "" {
		s.timers.Forget(s.code, s.playerID)
	}
}

func (s *Session) identity() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.playerID, s.code != "" && s.playerID != ""
}

// act runs an action and applies the snapshot it returns. A failed action
// leaves the session as it was.
func (s *Session) act(fn func(code, id string) (*game.Room, error)) error {
	code, id, ok := s.identity()
	if !ok {
		return ErrNotJoined
	}
	room, err := fn(code, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("room", code).Str("player", id).Msg("action failed")
		return err
	}
	s.apply(room)
	return nil
}

// connect adopts a room and starts watching and heartbeating
func (s *Session) connect(room *game.Room, playerID, name string) {
	s.disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.code, s.playerID, s.name = room.Code, playerID, name
	s.status, s.err, s.failures = StatusConnected, nil, 0
	s.stop = cancel
	s.mu.Unlock()

	s.apply(room)

	s.wg.Add(2)
	go s.watch(ctx, room.Code)
	go s.heartbeat(ctx, room.Code, playerID)
}

// disconnect stops the loops of the current connection and waits for them
func (s *Session) disconnect() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.wg.Wait()
}

func (s *Session) watch(ctx context.Context, code string) {
	defer s.wg.Done()
	for u := range s.watcher.Watch(ctx, code) {
		if u.Err != nil {
			s.lose(u.Err)
			return
		}
		s.apply(u.Room)
	}
}

func (s *Session) heartbeat(ctx context.Context, code, playerID string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		hctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		ok, err := s.engine.Heartbeat(hctx, code, playerID)
		cancel()
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if err == nil && ok {
			s.failures = 0
			s.mu.Unlock()
			continue
		}
		s.failures++
		failures := s.failures
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("room", code).Str("player", playerID).Int("failures", failures).Msg("heartbeat failed")
		if failures >= s.cfg.MaxHeartbeatFailures {
			s.lose(game.ErrConnectionLost)
			return
		}
	}
}

// lose marks the connection as lost and stops its loops without waiting for
// them, since it runs on one of them. Local state is kept for Retry.
func (s *Session) lose(err error) {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	code, id := s.code, s.playerID
	s.mu.Unlock()

	s.fail(err)
	if s.timers != nil {
		s.timers.Forget(code, id)
	}
	s.logger.Info().Err(err).Str("room", code).Str("player", id).Msg("connection lost")
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.err = err
}

// apply stores a snapshot and publishes it
func (s *Session) apply(room *game.Room) {
	if room == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.room = room
	if s.status == StatusConnected {
		s.err = nil
	}
	id := s.playerID
	// latest wins
	select {
	case <-s.updates:
	default:
	}
	s.updates <- room.Clone()
	s.mu.Unlock()

	if s.timers != nil {
		s.timers.Observe(room, id)
	}
}
