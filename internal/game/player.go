package game

import (
	"time"
)

// Player represents a participant in a room
type Player struct {
	ID               string    `json:"id"`
	RoomCode         string    `json:"roomCode"`
	Name             string    `json:"name"`
	IsAdmin          bool      `json:"isAdmin"`
	Word             string    `json:"word"`
	Clue             string    `json:"clue"`
	Votes            int       `json:"votes"`
	IsEliminated     bool      `json:"isEliminated"`
	HasSubmittedClue bool      `json:"hasSubmittedClue"`
	HasVoted         bool      `json:"hasVoted"`
	Score            int       `json:"score"`
	JoinedAt         time.Time `json:"joinedAt"`
	LastSeenAt       time.Time `json:"lastSeenAt"`
}

// NewPlayer creates a new player
func NewPlayer(id, roomCode, name string, now time.Time) *Player {
	return &Player{
		ID:         id,
		RoomCode:   roomCode,
		Name:       name,
		JoinedAt:   now,
		LastSeenAt: now,
	}
}

// IsActive reports whether the player is still in the game
func (p *Player) IsActive() bool {
	return !p.IsEliminated
}

// IsStale reports whether the player has not heartbeated within threshold
func (p *Player) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeenAt) > threshold
}

// Clone returns a copy of the player
func (p *Player) Clone() *Player {
	c := *p
	return &c
}
