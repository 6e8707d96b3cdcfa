package feed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store"
)

// PublishingStore wraps a RoomStore and publishes a change event after every
// successful write. Backends without their own notifications use it.
type PublishingStore struct {
	store.RoomStore
	pub    Publisher
	logger zerolog.Logger
}

// NewPublishingStore wraps s so its writes are announced on pub
func NewPublishingStore(s store.RoomStore, pub Publisher, logger zerolog.Logger) *PublishingStore {
	return &PublishingStore{
		RoomStore: s,
		pub:       pub,
		logger:    logger.With().Str("component", "publisher").Logger(),
	}
}

func (s *PublishingStore) publish(ctx context.Context, code string) {
	// a lost notification is repaired by the watchers' poll fallback
	if err := s.pub.Publish(ctx, code); err != nil {
		s.logger.Warn().Err(err).Str("room", code).Msg("publish failed")
	}
}

func (s *PublishingStore) UpsertRoom(ctx context.Context, code string, patch game.RoomPatch) (*game.Room, error) {
	room, err := s.RoomStore.UpsertRoom(ctx, code, patch)
	if err == nil {
		s.publish(ctx, code)
	}
	return room, err
}

func (s *PublishingStore) UpsertPlayer(ctx context.Context, roomCode, playerID string, patch game.PlayerPatch) (*game.Room, error) {
	room, err := s.RoomStore.UpsertPlayer(ctx, roomCode, playerID, patch)
	if err == nil {
		s.publish(ctx, roomCode)
	}
	return room, err
}

func (s *PublishingStore) UpsertPlayers(ctx context.Context, roomCode string, patches map[string]game.PlayerPatch) (*game.Room, error) {
	room, err := s.RoomStore.UpsertPlayers(ctx, roomCode, patches)
	if err == nil {
		s.publish(ctx, roomCode)
	}
	return room, err
}

func (s *PublishingStore) DeleteRoom(ctx context.Context, code string) error {
	err := s.RoomStore.DeleteRoom(ctx, code)
	if err == nil {
		s.publish(ctx, code)
	}
	return err
}

func (s *PublishingStore) DeletePlayer(ctx context.Context, playerID string) (*game.Room, error) {
	room, err := s.RoomStore.DeletePlayer(ctx, playerID)
	if err == nil {
		s.publish(ctx, room.Code)
	}
	return room, err
}

// ListRooms lists the wrapped store's rooms when it supports listing
func (s *PublishingStore) ListRooms(ctx context.Context) ([]*game.Room, error) {
	lister, ok := s.RoomStore.(store.Lister)
	if !ok {
		return nil, fmt.Errorf("%w: backend cannot list rooms", game.ErrStore)
	}
	return lister.ListRooms(ctx)
}

var (
	_ store.RoomStore = (*PublishingStore)(nil)
	_ store.Lister    = (*PublishingStore)(nil)
)
