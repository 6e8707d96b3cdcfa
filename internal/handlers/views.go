package handlers

import (
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// PlayerView is a player as another player may see them
type PlayerView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsAdmin          bool   `json:"isAdmin"`
	Word             string `json:"word,omitempty"`
	Clue             string `json:"clue,omitempty"`
	Votes            int    `json:"votes"`
	IsEliminated     bool   `json:"isEliminated"`
	HasSubmittedClue bool   `json:"hasSubmittedClue"`
	HasVoted         bool   `json:"hasVoted"`
	Score            int    `json:"score"`
}

// RoomView is the snapshot sent to one player. Words are private until the
// game ends: a player sees their own word and nobody else's.
type RoomView struct {
	Code                 string         `json:"code"`
	Settings             game.Settings  `json:"settings"`
	Phase                game.Phase     `json:"phase"`
	Round                int            `json:"round"`
	TimeLeft             int            `json:"timeLeft"`
	VoteCounts           map[string]int `json:"voteCounts,omitempty"`
	EliminationResult    string         `json:"eliminationResult,omitempty"`
	LastEliminatedPlayer string         `json:"lastEliminatedPlayerId,omitempty"`
	GameWinner           game.Winner    `json:"gameWinner,omitempty"`
	MajorityWord         string         `json:"majorityWord,omitempty"`
	ImposterWord         string         `json:"imposterWord,omitempty"`
	Players              []PlayerView   `json:"players"`
	PlayerID             string         `json:"playerId,omitempty"`
}

// viewFor builds what viewerID may see of room. An empty viewer sees no words.
func viewFor(room *game.Room, viewerID string) RoomView {
	finished := room.Phase == game.PhaseResults
	v := RoomView{
		Code:                 room.Code,
		Settings:             room.Settings,
		Phase:                room.Phase,
		Round:                room.Round,
		TimeLeft:             room.TimeLeft,
		VoteCounts:           room.VoteCounts,
		EliminationResult:    room.EliminationResult,
		LastEliminatedPlayer: room.LastEliminatedPlayer,
		GameWinner:           room.GameWinner,
		Players:              make([]PlayerView, 0, len(room.Players)),
		PlayerID:             viewerID,
	}
	if finished {
		v.MajorityWord = room.MajorityWord
		v.ImposterWord = room.ImposterWord
	}

	for _, p := range room.Players {
		pv := PlayerView{
			ID:               p.ID,
			Name:             p.Name,
			IsAdmin:          p.IsAdmin,
			Clue:             p.Clue,
			Votes:            p.Votes,
			IsEliminated:     p.IsEliminated,
			HasSubmittedClue: p.HasSubmittedClue,
			HasVoted:         p.HasVoted,
			Score:            p.Score,
		}
		if finished || (viewerID != "" && p.ID == viewerID) {
			pv.Word = p.Word
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
