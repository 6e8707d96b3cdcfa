package game

// Phase represents the room's current stage in the game
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseWordReveal     Phase = "word_reveal"
	PhaseClueSubmission Phase = "clue_submission"
	PhaseVoting         Phase = "voting"
	PhaseVoteReveal     Phase = "vote_reveal"
	PhaseResults        Phase = "results"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseWordReveal, PhaseClueSubmission, PhaseVoting, PhaseVoteReveal, PhaseResults:
		return true
	}
	return false
}

// Timed reports whether the phase has a countdown driven by the admin's timers
func (p Phase) Timed() bool {
	switch p {
	case PhaseWordReveal, PhaseClueSubmission, PhaseVoting, PhaseVoteReveal:
		return true
	}
	return false
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:          {PhaseWordReveal},
		PhaseWordReveal:     {PhaseClueSubmission},
		PhaseClueSubmission: {PhaseVoting},
		PhaseVoting:         {PhaseVoteReveal},
		PhaseVoteReveal:     {PhaseResults, PhaseClueSubmission},
		PhaseResults:        {PhaseLobby},
	}

	for _, phase := range validTransitions[p] {
		if phase == target {
			return true
		}
	}
	return false
}

// Winner identifies which side won a finished game
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerMajority  Winner = "majority"
	WinnerImposters Winner = "imposters"
)
