package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

type roomRecord struct {
	room    *game.Room // Players is always nil here
	players map[string]*game.Player
}

// MemoryStore holds all game state in memory. It is safe for concurrent use
// within one process.
type MemoryStore struct {
	mu          sync.RWMutex
	rooms       map[string]*roomRecord
	playerRooms map[string]string // player id -> room code
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:       make(map[string]*roomRecord),
		playerRooms: make(map[string]string),
		now:         time.Now,
	}
}

// SetClock replaces the store's time source
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// GetRoom retrieves a room by code
func (s *MemoryStore) GetRoom(ctx context.Context, code string) (*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.rooms[code]
	if !exists {
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	return rec.snapshot(), nil
}

// ListRooms returns a snapshot of every room
func (s *MemoryStore) ListRooms(ctx context.Context) ([]*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*game.Room, 0, len(s.rooms))
	for _, rec := range s.rooms {
		rooms = append(rooms, rec.snapshot())
	}
	return rooms, nil
}

// UpsertRoom creates or updates a room
func (s *MemoryStore) UpsertRoom(ctx context.Context, code string, patch game.RoomPatch) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, exists := s.rooms[code]
	if !exists {
		if patch.IfPhase != nil || patch.IfRound != nil || patch.IfPlayers != nil {
			return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
		}
		rec = &roomRecord{
			room:    game.NewRoom(code, game.DefaultSettings(), now),
			players: make(map[string]*game.Player),
		}
	}
	if err := patch.Check(rec.room); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rec.players))
	for id := range rec.players {
		ids = append(ids, id)
	}
	if err := patch.CheckPlayers(code, ids); err != nil {
		return nil, err
	}

	patch.Apply(rec.room)
	rec.room.LastActivityAt = now
	s.rooms[code] = rec
	return rec.snapshot(), nil
}

// UpsertPlayer creates or updates a player of an existing room
func (s *MemoryStore) UpsertPlayer(ctx context.Context, roomCode, playerID string, patch game.PlayerPatch) (*game.Room, error) {
	return s.UpsertPlayers(ctx, roomCode, map[string]game.PlayerPatch{playerID: patch})
}

// UpsertPlayers applies several player patches under one lock
func (s *MemoryStore) UpsertPlayers(ctx context.Context, roomCode string, patches map[string]game.PlayerPatch) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.rooms[roomCode]
	if !exists {
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, roomCode)
	}
	for id, patch := range patches {
		if code, ok := s.playerRooms[id]; ok && code != roomCode {
			return nil, fmt.Errorf("%w: player %s belongs to room %s", game.ErrValidation, id, code)
		}
		if err := patch.Check(rec.players[id], roomCode, rec.room.Phase); err != nil {
			return nil, err
		}
	}

	now := s.now()
	for id, patch := range patches {
		p, ok := rec.players[id]
		if !ok {
			p = game.NewPlayer(id, roomCode, "", now)
			rec.players[id] = p
			s.playerRooms[id] = roomCode
		}
		patch.Apply(p)
	}
	rec.room.LastActivityAt = now
	return rec.snapshot(), nil
}

// DeleteRoom removes a room and its players
func (s *MemoryStore) DeleteRoom(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.rooms[code]
	if !exists {
		return nil
	}
	for id := range rec.players {
		delete(s.playerRooms, id)
	}
	delete(s.rooms, code)
	return nil
}

// DeletePlayer removes a player from its room
func (s *MemoryStore) DeletePlayer(ctx context.Context, playerID string) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.playerRooms[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", game.ErrNotFound, playerID)
	}
	delete(s.playerRooms, playerID)

	rec, exists := s.rooms[code]
	if !exists {
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	delete(rec.players, playerID)
	rec.room.LastActivityAt = s.now()
	return rec.snapshot(), nil
}

func (rec *roomRecord) snapshot() *game.Room {
	room := rec.room.Clone()
	room.Players = make([]*game.Player, 0, len(rec.players))
	for _, p := range rec.players {
		room.Players = append(room.Players, p.Clone())
	}
	game.SortPlayers(room.Players)
	return room
}

var (
	_ RoomStore = (*MemoryStore)(nil)
	_ Lister    = (*MemoryStore)(nil)
)
