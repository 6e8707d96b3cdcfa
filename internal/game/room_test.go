package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(names ...string) *Room {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	room := NewRoom("TEST01", DefaultSettings(), now)
	for i, name := range names {
		p := NewPlayer("p"+string(rune('1'+i)), room.Code, name, now.Add(time.Duration(i)*time.Second))
		room.Players = append(room.Players, p)
	}
	if len(room.Players) > 0 {
		room.Players[0].IsAdmin = true
	}
	return room
}

func TestNewRoom(t *testing.T) {
	room := newTestRoom()

	assert.Equal(t, PhaseLobby, room.Phase)
	assert.Equal(t, 1, room.Round)
	assert.Empty(t, room.Players)
	assert.Nil(t, room.Admin())
}

func TestRoom_PlayerByName(t *testing.T) {
	room := newTestRoom("Alice", "Bob")

	require.NotNil(t, room.PlayerByName("alice"))
	assert.Equal(t, "p1", room.PlayerByName("  ALICE ").ID)
	assert.Nil(t, room.PlayerByName("Cara"))
}

func TestRoom_AllCluesSubmitted(t *testing.T) {
	room := newTestRoom("Alice", "Bob", "Cara")
	assert.False(t, room.AllCluesSubmitted())

	room.Players[0].HasSubmittedClue = true
	room.Players[1].HasSubmittedClue = true
	assert.False(t, room.AllCluesSubmitted())

	// eliminated players do not hold up the round
	room.Players[2].IsEliminated = true
	assert.True(t, room.AllCluesSubmitted())
}

func TestRoom_AllVoted(t *testing.T) {
	room := newTestRoom("Alice", "Bob")
	room.Players[0].HasVoted = true
	assert.False(t, room.AllVoted())

	room.Players[1].HasVoted = true
	assert.True(t, room.AllVoted())

	empty := newTestRoom()
	assert.False(t, empty.AllVoted(), "an empty room never counts as fully voted")
}

func TestRoom_Clone(t *testing.T) {
	room := newTestRoom("Alice", "Bob")
	room.VoteCounts = map[string]int{"p1": 2}

	clone := room.Clone()
	clone.Players[0].Name = "Changed"
	clone.VoteCounts["p1"] = 9

	assert.Equal(t, "Alice", room.Players[0].Name)
	assert.Equal(t, 2, room.VoteCounts["p1"])
}

func TestSortPlayers(t *testing.T) {
	now := time.Now()
	players := []*Player{
		NewPlayer("b", "R", "Second", now),
		NewPlayer("c", "R", "Third", now.Add(time.Second)),
		NewPlayer("a", "R", "First", now),
	}
	SortPlayers(players)

	assert.Equal(t, []string{"a", "b", "c"}, []string{players[0].ID, players[1].ID, players[2].ID})
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("  abc123 "))
}

func TestPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseLobby, PhaseWordReveal, true},
		{PhaseWordReveal, PhaseClueSubmission, true},
		{PhaseClueSubmission, PhaseVoting, true},
		{PhaseVoting, PhaseVoteReveal, true},
		{PhaseVoteReveal, PhaseResults, true},
		{PhaseVoteReveal, PhaseClueSubmission, true},
		{PhaseResults, PhaseLobby, true},
		{PhaseLobby, PhaseVoting, false},
		{PhaseResults, PhaseWordReveal, false},
		{PhaseVoting, PhaseClueSubmission, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRoomPatch(t *testing.T) {
	room := newTestRoom("Alice")

	t.Run("precondition mismatch", func(t *testing.T) {
		patch := RoomPatch{IfPhase: Ptr(PhaseVoting)}
		assert.ErrorIs(t, patch.Check(room), ErrInvalidPhase)
	})

	t.Run("apply clears vote counts", func(t *testing.T) {
		room.VoteCounts = map[string]int{"p1": 1}
		var cleared map[string]int
		RoomPatch{VoteCounts: &cleared, Phase: Ptr(PhaseClueSubmission)}.Apply(room)
		assert.Nil(t, room.VoteCounts)
		assert.Equal(t, PhaseClueSubmission, room.Phase)
	})
}

func TestPlayerPatch_AddVotes(t *testing.T) {
	p := NewPlayer("p1", "R", "Alice", time.Now())
	PlayerPatch{AddVotes: 1}.Apply(p)
	PlayerPatch{AddVotes: 1}.Apply(p)
	assert.Equal(t, 2, p.Votes)

	PlayerPatch{Votes: Ptr(0), AddVotes: 1}.Apply(p)
	assert.Equal(t, 1, p.Votes, "Votes is set before the increment")
}
