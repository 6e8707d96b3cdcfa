// Package store holds the Room Store contract and its two backends: a process
// local MemoryStore and a PostgresStore shared by many server processes.
package store

import (
	"context"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// RoomStore is durable keyed storage for rooms and their players. Every mutation
// returns the fresh composed snapshot of the room so callers never need a second
// read to observe their own write. Each call is atomic on its own; nothing is
// held across calls.
type RoomStore interface {
	// GetRoom returns game.ErrNotFound when the room does not exist.
	GetRoom(ctx context.Context, code string) (*game.Room, error)

	// UpsertRoom creates the room with default settings when it is missing, then
	// applies the patch. A patch with preconditions never creates a room.
	UpsertRoom(ctx context.Context, code string, patch game.RoomPatch) (*game.Room, error)

	// UpsertPlayer creates the player when missing. The room must exist.
	UpsertPlayer(ctx context.Context, roomCode, playerID string, patch game.PlayerPatch) (*game.Room, error)

	// UpsertPlayers applies several player patches atomically.
	UpsertPlayers(ctx context.Context, roomCode string, patches map[string]game.PlayerPatch) (*game.Room, error)

	// DeleteRoom removes the room and, by cascade, its players. Deleting a missing
	// room is not an error.
	DeleteRoom(ctx context.Context, code string) error

	// DeletePlayer removes one player and returns the room as it is afterwards,
	// possibly with no players left.
	DeletePlayer(ctx context.Context, playerID string) (*game.Room, error)
}

// Lister is implemented by stores that can enumerate their rooms
type Lister interface {
	ListRooms(ctx context.Context) ([]*game.Room, error)
}
