// Package session implements the game session engine: the room and player
// lifecycle, and the phase state machine every client action flows through.
//
// The engine keeps no state of its own between calls. Every operation reads the
// room from the store, validates the action against the current phase, and
// writes back with store level preconditions, so two servers (or two timers)
// racing on the same room cannot apply an out of phase write.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store"
)

// Options are the engine's timing and capacity settings
type Options struct {
	// WordRevealSeconds is how long everyone looks at their word
	WordRevealSeconds int
	// VoteRevealSeconds is how long the vote result is shown
	VoteRevealSeconds int
	// PlayerTimeout is the heartbeat age after which a player counts as gone
	PlayerTimeout time.Duration
	// MaxPlayers caps settings.totalPlayers
	MaxPlayers int
	// DefaultSettings are used for new rooms
	DefaultSettings game.Settings
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		WordRevealSeconds: 5,
		VoteRevealSeconds: 8,
		PlayerTimeout:     2 * time.Minute,
		MaxPlayers:        20,
		DefaultSettings:   game.DefaultSettings(),
	}
}

// Engine runs game sessions against a RoomStore
type Engine struct {
	store  store.RoomStore
	words  game.WordBank
	opts   Options
	logger zerolog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	newID func() string
}

// NewEngine creates a session engine
func NewEngine(s store.RoomStore, words game.WordBank, opts Options, logger zerolog.Logger) *Engine {
	if words == nil {
		words = game.DefaultWordBank()
	}
	defaults := DefaultOptions()
	if opts.WordRevealSeconds <= 0 {
		opts.WordRevealSeconds = defaults.WordRevealSeconds
	}
	if opts.VoteRevealSeconds <= 0 {
		opts.VoteRevealSeconds = defaults.VoteRevealSeconds
	}
	if opts.PlayerTimeout <= 0 {
		opts.PlayerTimeout = defaults.PlayerTimeout
	}
	if opts.MaxPlayers < game.MinPlayers {
		opts.MaxPlayers = defaults.MaxPlayers
	}
	if opts.DefaultSettings == (game.Settings{}) {
		opts.DefaultSettings = defaults.DefaultSettings
	}

	return &Engine{
		store:  s,
		words:  words,
		opts:   opts,
		logger: logger.With().Str("component", "engine").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetClock replaces the engine's time source
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetRandSource makes word picking and dealing deterministic
func (e *Engine) SetRandSource(src rand.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(src)
}

// Options returns the engine's effective options
func (e *Engine) Options() Options {
	return e.opts
}

func (e *Engine) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}

// GetRoom returns the current snapshot of a room
func (e *Engine) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	return e.store.GetRoom(ctx, game.NormalizeCode(code))
}

// CreateRoom creates a room with the caller as admin. An empty code gets a
// generated one. Calling it again with the admin's name reconnects the admin
// instead of failing, so a repeated create from the same client is harmless.
func (e *Engine) CreateRoom(ctx context.Context, code, name string) (*game.Room, string, error) {
	name, err := game.ValidateName(name)
	if err != nil {
		return nil, "", err
	}

	code = game.NormalizeCode(code)
	if code == "" {
		code, err = e.freeCode(ctx)
		if err != nil {
			return nil, "", err
		}
	}
	if err := game.ValidateCode(code); err != nil {
		return nil, "", err
	}

	room, err := e.store.GetRoom(ctx, code)
	switch {
	case err == nil:
		return e.reconnectAdmin(ctx, room, name)
	case !errors.Is(err, game.ErrNotFound):
		return nil, "", err
	}

	settings := e.opts.DefaultSettings
	if _, err := e.store.UpsertRoom(ctx, code, game.RoomPatch{Settings: &settings}); err != nil {
		return nil, "", err
	}

	now := e.clock()
	id := e.newID()
	room, err = e.store.UpsertPlayer(ctx, code, id, game.PlayerPatch{
		Name:       &name,
		IsAdmin:    game.Ptr(true),
		JoinedAt:   &now,
		LastSeenAt: &now,
	})
	if err != nil {
		return nil, "", err
	}

	// another create for the same code may have landed in between; the first
	// admin in join order keeps the room
	if admin := room.Admin(); admin != nil && admin.ID != id {
		if _, err := e.store.DeletePlayer(ctx, id); err != nil {
			e.logger.Warn().Err(err).Str("room", code).Msg("failed to undo duplicate create")
		}
		if admin.IsAdmin && equalNames(admin.Name, name) {
			return e.reconnectAdmin(ctx, room, name)
		}
		return nil, "", fmt.Errorf("%w: %s", game.ErrAlreadyExists, code)
	}

	e.logger.Info().Str("room", code).Str("player", id).Msg("room created")
	return room, id, nil
}

func (e *Engine) reconnectAdmin(ctx context.Context, room *game.Room, name string) (*game.Room, string, error) {
	p := room.PlayerByName(name)
	if p == nil || !p.IsAdmin {
		return nil, "", fmt.Errorf("%w: %s", game.ErrAlreadyExists, room.Code)
	}
	now := e.clock()
	room, err := e.store.UpsertPlayer(ctx, room.Code, p.ID, game.PlayerPatch{LastSeenAt: &now, IfExists: true})
	if err != nil {
		return nil, "", err
	}
	e.logger.Info().Str("room", room.Code).Str("player", p.ID).Msg("admin reconnected")
	return room, p.ID, nil
}

func (e *Engine) freeCode(ctx context.Context) (string, error) {
	for i := 0; i < 10; i++ {
		code := game.GenerateRoomCode(game.RoomCodeLength)
		_, err := e.store.GetRoom(ctx, code)
		if errors.Is(err, game.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: could not find a free room code", game.ErrStore)
}

// JoinRoom adds a player to a lobby. A name already used by an active player
// is a reconnect and returns that player's id, in any phase. A stale player
// holding the name is removed and replaced.
func (e *Engine) JoinRoom(ctx context.Context, code, name string) (*game.Room, string, error) {
	name, err := game.ValidateName(name)
	if err != nil {
		return nil, "", err
	}
	code = game.NormalizeCode(code)

	room, err := e.store.GetRoom(ctx, code)
	if err != nil {
		return nil, "", err
	}

	now := e.clock()
	if existing := room.PlayerByName(name); existing != nil {
		if !existing.IsStale(now, e.opts.PlayerTimeout) || room.Phase != game.PhaseLobby {
			room, err = e.store.UpsertPlayer(ctx, code, existing.ID, game.PlayerPatch{LastSeenAt: &now, IfExists: true})
			if err != nil {
				return nil, "", err
			}
			e.logger.Info().Str("room", code).Str("player", existing.ID).Msg("player reconnected")
			return room, existing.ID, nil
		}

		e.logger.Info().Str("room", code).Str("player", existing.ID).Msg("replacing stale player")
		room, err = e.RemovePlayer(ctx, code, existing.ID)
		if errors.Is(err, game.ErrNotFound) {
			room, err = e.store.GetRoom(ctx, code)
		}
		if err != nil {
			return nil, "", err
		}
		if room == nil {
			// the stale player was the last one and took the room with them
			return nil, "", fmt.Errorf("%w: room %s", game.ErrNotFound, code)
		}
	}

	if room.Phase != game.PhaseLobby {
		return nil, "", fmt.Errorf("%w: room %s is in %s", game.ErrInvalidPhase, code, room.Phase)
	}
	if room.IsFull() {
		return nil, "", fmt.Errorf("%w: %d of %d", game.ErrRoomFull, len(room.Players), room.Settings.TotalPlayers)
	}

	id := e.newID()
	room, err = e.store.UpsertPlayer(ctx, code, id, game.PlayerPatch{
		Name:       &name,
		IsAdmin:    game.Ptr(false),
		JoinedAt:   &now,
		LastSeenAt: &now,
		IfPhase:    game.Ptr(game.PhaseLobby),
	})
	if err != nil {
		return nil, "", err
	}

	// concurrent joins can overshoot the capacity or reuse a name; the latest
	// joiner backs out
	if !e.keepsSeat(room, id, name) {
		if _, err := e.store.DeletePlayer(ctx, id); err != nil {
			e.logger.Warn().Err(err).Str("room", code).Msg("failed to undo join")
		}
		if other := room.PlayerByName(name); other != nil && other.ID != id {
			return e.JoinRoom(ctx, code, name)
		}
		return nil, "", fmt.Errorf("%w: room %s", game.ErrRoomFull, code)
	}

	room, err = e.ensureAdmin(ctx, room)
	if err != nil {
		return nil, "", err
	}
	e.logger.Info().Str("room", code).Str("player", id).Str("name", name).Msg("player joined")
	return room, id, nil
}

// keepsSeat reports whether the new player id is within capacity and is the
// first holder of its name
func (e *Engine) keepsSeat(room *game.Room, id, name string) bool {
	for i, p := range room.Players {
		if p.ID == id {
			return i < room.Settings.TotalPlayers
		}
		if equalNames(p.Name, name) {
			return false
		}
	}
	return false
}

// UpdateSettings merges a settings patch, lobby and admin only. The imposter
// count is clamped to the new player total.
func (e *Engine) UpdateSettings(ctx context.Context, code, playerID string, patch game.SettingsPatch) (*game.Room, error) {
	room, _, err := e.adminRoom(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Phase != game.PhaseLobby {
		return nil, fmt.Errorf("%w: settings can only change in the lobby", game.ErrInvalidPhase)
	}

	settings := patch.Apply(room.Settings)
	if err := settings.Validate(e.opts.MaxPlayers); err != nil {
		return nil, err
	}
	if settings.TotalPlayers < len(room.Players) {
		return nil, fmt.Errorf("%w: the room already has %d players", game.ErrValidation, len(room.Players))
	}

	return e.store.UpsertRoom(ctx, room.Code, game.RoomPatch{
		Settings: &settings,
		IfPhase:  game.Ptr(game.PhaseLobby),
	})
}

// RemovePlayer takes a player out of the room. The room is deleted when it
// becomes empty; otherwise an admin is promoted if needed. A nil room is
// returned when the room was deleted.
func (e *Engine) RemovePlayer(ctx context.Context, code, playerID string) (*game.Room, error) {
	code = game.NormalizeCode(code)
	room, err := e.store.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetPlayer(playerID) == nil {
		return nil, fmt.Errorf("%w: player %s not in room %s", game.ErrNotFound, playerID, code)
	}

	room, err = e.store.DeletePlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("room", code).Str("player", playerID).Msg("player removed")

	if len(room.Players) == 0 {
		if err := e.store.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
		e.logger.Info().Str("room", code).Msg("room deleted, no players left")
		return nil, nil
	}

	room, err = e.ensureAdmin(ctx, room)
	if err != nil {
		return nil, err
	}
	// the leaver may have been the last one the room was waiting for
	return e.advanceIfComplete(ctx, room)
}

// ensureAdmin makes the first player in join order the only admin when the
// room has no admin, and demotes extra admins left by racing writers. Running
// it concurrently converges on the same player.
func (e *Engine) ensureAdmin(ctx context.Context, room *game.Room) (*game.Room, error) {
	if len(room.Players) == 0 || room.AdminCount() == 1 {
		return room, nil
	}

	keep := room.Admin()
	if keep == nil {
		keep = room.Players[0]
	}
	patches := make(map[string]game.PlayerPatch)
	for _, p := range room.Players {
		want := p.ID == keep.ID
		if p.IsAdmin != want {
			patches[p.ID] = game.PlayerPatch{IsAdmin: game.Ptr(want), IfExists: true}
		}
	}

	updated, err := e.store.UpsertPlayers(ctx, room.Code, patches)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			// someone left meanwhile, start over from a fresh read
			fresh, err := e.store.GetRoom(ctx, room.Code)
			if err != nil {
				return nil, err
			}
			return e.ensureAdmin(ctx, fresh)
		}
		return nil, err
	}
	e.logger.Info().Str("room", room.Code).Str("player", keep.ID).Msg("admin promoted")
	return updated, nil
}

// Heartbeat refreshes a player's liveness. It reports false when the player or
// the room no longer exists.
func (e *Engine) Heartbeat(ctx context.Context, code, playerID string) (bool, error) {
	now := e.clock()
	_, err := e.store.UpsertPlayer(ctx, game.NormalizeCode(code), playerID, game.PlayerPatch{
		LastSeenAt: &now,
		IfExists:   true,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, game.ErrNotFound), errors.Is(err, game.ErrValidation):
		return false, nil
	}
	return false, err
}

// member loads a room and one of its players
func (e *Engine) member(ctx context.Context, code, playerID string) (*game.Room, *game.Player, error) {
	room, err := e.store.GetRoom(ctx, game.NormalizeCode(code))
	if err != nil {
		return nil, nil, err
	}
	p := room.GetPlayer(playerID)
	if p == nil {
		return nil, nil, fmt.Errorf("%w: player %s not in room %s", game.ErrNotFound, playerID, room.Code)
	}
	return room, p, nil
}

// adminRoom loads a room on behalf of its admin
func (e *Engine) adminRoom(ctx context.Context, code, playerID string) (*game.Room, *game.Player, error) {
	room, p, err := e.member(ctx, code, playerID)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsAdmin {
		return nil, nil, game.ErrNotAdmin
	}
	return room, p, nil
}

func equalNames(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
