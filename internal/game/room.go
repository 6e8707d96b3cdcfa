package game

import (
	"sort"
	"strings"
	"time"
)

// Room is a composed snapshot of one game session and its players. Snapshots are
// values: stores hand out fresh copies and never share them between callers.
type Room struct {
	Code                 string         `json:"code"`
	Settings             Settings       `json:"settings"`
	Phase                Phase          `json:"phase"`
	Round                int            `json:"round"`
	TimeLeft             int            `json:"timeLeft"`
	VoteCounts           map[string]int `json:"voteCounts,omitempty"`
	EliminationResult    string         `json:"eliminationResult,omitempty"`
	LastEliminatedPlayer string         `json:"lastEliminatedPlayerId,omitempty"`
	GameWinner           Winner         `json:"gameWinner,omitempty"`
	MajorityWord         string         `json:"-"`
	ImposterWord         string         `json:"-"`
	CreatedAt            time.Time      `json:"createdAt"`
	LastActivityAt       time.Time      `json:"lastActivityAt"`

	// Players in stable join order
	Players []*Player `json:"players"`
}

// NewRoom creates a lobby room with the given settings
func NewRoom(code string, settings Settings, now time.Time) *Room {
	return &Room{
		Code:           code,
		Settings:       settings,
		Phase:          PhaseLobby,
		Round:          1,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// NormalizeCode upper-cases and trims a human typed room code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SortPlayers orders players by join time, then id
func SortPlayers(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].ID < players[j].ID
	})
}

// GetPlayer retrieves a player by ID
func (r *Room) GetPlayer(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// PlayerByName finds a player by case-insensitive name
func (r *Room) PlayerByName(name string) *Player {
	name = strings.TrimSpace(name)
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Admin returns the admin player, or nil for an empty room
func (r *Room) Admin() *Player {
	for _, p := range r.Players {
		if p.IsAdmin {
			return p
		}
	}
	return nil
}

// AdminCount returns how many players hold the admin flag
func (r *Room) AdminCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsAdmin {
			n++
		}
	}
	return n
}

// ActivePlayers returns the players that have not been eliminated
func (r *Room) ActivePlayers() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsActive() {
			players = append(players, p)
		}
	}
	return players
}

// AllCluesSubmitted reports whether every active player has submitted a clue
func (r *Room) AllCluesSubmitted() bool {
	active := r.ActivePlayers()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !p.HasSubmittedClue {
			return false
		}
	}
	return true
}

// AllVoted reports whether every active player has voted
func (r *Room) AllVoted() bool {
	active := r.ActivePlayers()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !p.HasVoted {
			return false
		}
	}
	return true
}

// IsFull reports whether the lobby has reached its configured size
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.Settings.TotalPlayers
}

// Clone returns a deep copy of the room and its players
func (r *Room) Clone() *Room {
	c := *r
	if r.VoteCounts != nil {
		c.VoteCounts = make(map[string]int, len(r.VoteCounts))
		for k, v := range r.VoteCounts {
			c.VoteCounts[k] = v
		}
	}
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		c.Players[i] = p.Clone()
	}
	return &c
}
