package game

import (
	"fmt"
	"time"
)

// RoomPatch is a partial update of a room's own fields. Nil fields are left as
// they are. IfPhase, IfRound and IfPlayers are preconditions: a store applies the
// patch only when the stored room matches them, and reports ErrInvalidPhase
// otherwise.
type RoomPatch struct {
	Settings             *Settings
	Phase                *Phase
	Round                *int
	TimeLeft             *int
	VoteCounts           *map[string]int
	EliminationResult    *string
	LastEliminatedPlayer *string
	GameWinner           *Winner
	MajorityWord         *string
	ImposterWord         *string
	LastActivityAt       *time.Time

	IfPhase *Phase
	IfRound *int
	// IfPlayers, when non-nil, must be exactly the ids of the room's players
	IfPlayers []string
}

// Check evaluates the patch preconditions against the stored room
func (p RoomPatch) Check(r *Room) error {
	if p.IfPhase != nil && r.Phase != *p.IfPhase {
		return fmt.Errorf("%w: room %s is in %s, expected %s", ErrInvalidPhase, r.Code, r.Phase, *p.IfPhase)
	}
	if p.IfRound != nil && r.Round != *p.IfRound {
		return fmt.Errorf("%w: room %s is in round %d, expected %d", ErrInvalidPhase, r.Code, r.Round, *p.IfRound)
	}
	return nil
}

// CheckPlayers compares IfPlayers with the ids a store holds for the room
func (p RoomPatch) CheckPlayers(code string, ids []string) error {
	if p.IfPlayers == nil {
		return nil
	}
	want := make(map[string]bool, len(p.IfPlayers))
	for _, id := range p.IfPlayers {
		want[id] = true
	}
	if len(ids) != len(want) {
		return fmt.Errorf("%w: players of room %s changed", ErrInvalidPhase, code)
	}
	for _, id := range ids {
		if !want[id] {
			return fmt.Errorf("%w: players of room %s changed", ErrInvalidPhase, code)
		}
	}
	return nil
}

// Apply writes the patch onto r
func (p RoomPatch) Apply(r *Room) {
	if p.Settings != nil {
		r.Settings = *p.Settings
	}
	if p.Phase != nil {
		r.Phase = *p.Phase
	}
	if p.Round != nil {
		r.Round = *p.Round
	}
	if p.TimeLeft != nil {
		r.TimeLeft = *p.TimeLeft
	}
	if p.VoteCounts != nil {
		if *p.VoteCounts == nil {
			r.VoteCounts = nil
		} else {
			r.VoteCounts = make(map[string]int, len(*p.VoteCounts))
			for k, v := range *p.VoteCounts {
				r.VoteCounts[k] = v
			}
		}
	}
	if p.EliminationResult != nil {
		r.EliminationResult = *p.EliminationResult
	}
	if p.LastEliminatedPlayer != nil {
		r.LastEliminatedPlayer = *p.LastEliminatedPlayer
	}
	if p.GameWinner != nil {
		r.GameWinner = *p.GameWinner
	}
	if p.MajorityWord != nil {
		r.MajorityWord = *p.MajorityWord
	}
	if p.ImposterWord != nil {
		r.ImposterWord = *p.ImposterWord
	}
	if p.LastActivityAt != nil {
		r.LastActivityAt = *p.LastActivityAt
	}
}

// PlayerPatch is a partial update of a player. AddVotes is applied as an atomic
// increment on top of Votes (Votes, when set, is applied first). The If fields
// are preconditions checked by the store before any patch of the batch lands.
type PlayerPatch struct {
	Name             *string
	IsAdmin          *bool
	Word             *string
	Clue             *string
	Votes            *int
	AddVotes         int
	IsEliminated     *bool
	HasSubmittedClue *bool
	HasVoted         *bool
	Score            *int
	JoinedAt         *time.Time
	LastSeenAt       *time.Time

	// IfExists refuses to create the player
	IfExists bool
	// IfPhase is compared with the phase of the player's room
	IfPhase    *Phase
	IfHasVoted *bool
}

// Check evaluates the patch preconditions. p is nil when the player does not
// exist yet.
func (pp PlayerPatch) Check(p *Player, roomCode string, phase Phase) error {
	if pp.IfPhase != nil && phase != *pp.IfPhase {
		return fmt.Errorf("%w: room %s is in %s, expected %s", ErrInvalidPhase, roomCode, phase, *pp.IfPhase)
	}
	if p == nil {
		if pp.IfExists {
			return fmt.Errorf("%w: player not in room %s", ErrNotFound, roomCode)
		}
		return nil
	}
	if pp.IfHasVoted != nil && p.HasVoted != *pp.IfHasVoted {
		if p.HasVoted {
			return fmt.Errorf("%w: player %s", ErrAlreadyVoted, p.ID)
		}
		return fmt.Errorf("%w: player %s has not voted", ErrValidation, p.ID)
	}
	return nil
}

// Apply writes the patch onto p
func (pp PlayerPatch) Apply(p *Player) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.IsAdmin != nil {
		p.IsAdmin = *pp.IsAdmin
	}
	if pp.Word != nil {
		p.Word = *pp.Word
	}
	if pp.Clue != nil {
		p.Clue = *pp.Clue
	}
	if pp.Votes != nil {
		p.Votes = *pp.Votes
	}
	p.Votes += pp.AddVotes
	if pp.IsEliminated != nil {
		p.IsEliminated = *pp.IsEliminated
	}
	if pp.HasSubmittedClue != nil {
		p.HasSubmittedClue = *pp.HasSubmittedClue
	}
	if pp.HasVoted != nil {
		p.HasVoted = *pp.HasVoted
	}
	if pp.Score != nil {
		p.Score = *pp.Score
	}
	if pp.JoinedAt != nil {
		p.JoinedAt = *pp.JoinedAt
	}
	if pp.LastSeenAt != nil {
		p.LastSeenAt = *pp.LastSeenAt
	}
}

// Ptr returns a pointer to v, for building patches
func Ptr[T any](v T) *T {
	return &v
}
