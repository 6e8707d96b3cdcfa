package game

// NoElimination is the elimination result recorded when a vote eliminates nobody
const NoElimination = "no one was eliminated"

// Tally holds the outcome of counting one round of votes
type Tally struct {
	Counts     map[string]int
	Eliminated string // empty on a tie or when nobody received a vote
	MaxVotes   int
	Tied       bool
}

// TallyVotes counts the votes of the active players. A player is eliminated only
// when they alone hold the maximum and that maximum is above zero.
func TallyVotes(players []*Player) Tally {
	t := Tally{Counts: make(map[string]int, len(players))}
	holders := 0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		t.Counts[p.ID] = p.Votes
		switch {
		case p.Votes > t.MaxVotes:
			t.MaxVotes = p.Votes
			t.Eliminated = p.ID
			holders = 1
		case p.Votes == t.MaxVotes:
			holders++
		}
	}
	if t.MaxVotes == 0 || holders != 1 {
		t.Tied = t.MaxVotes > 0
		t.Eliminated = ""
	}
	return t
}

// EliminationMessage describes the tally outcome for display
func EliminationMessage(t Tally, players []*Player) string {
	if t.Eliminated == "" {
		if t.Tied {
			return "It's a tie, " + NoElimination
		}
		return "No votes were cast, " + NoElimination
	}
	for _, p := range players {
		if p.ID == t.Eliminated {
			return p.Name + " was eliminated"
		}
	}
	return NoElimination
}

// EvaluateWinner decides whether the game is over. The pair is the one dealt at
// the start of the game; when it is unknown the words are recovered from the
// players, the more common one being the majority word.
func EvaluateWinner(players []*Player, pair WordPair) Winner {
	if pair.Majority == "" {
		pair = inferPair(players)
	}

	majority, imposters := 0, 0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		switch p.Word {
		case pair.Majority:
			majority++
		case pair.Imposter:
			if pair.Imposter != "" {
				imposters++
			}
		}
	}

	switch {
	case imposters == 0:
		return WinnerMajority
	case majority == 0, imposters >= majority:
		return WinnerImposters
	}
	return WinnerNone
}

func inferPair(players []*Player) WordPair {
	counts := make(map[string]int)
	var order []string
	for _, p := range players {
		if p.Word == "" {
			continue
		}
		if _, seen := counts[p.Word]; !seen {
			order = append(order, p.Word)
		}
		counts[p.Word]++
	}

	var pair WordPair
	switch len(order) {
	case 0:
	case 1:
		pair.Majority = order[0]
	default:
		pair.Majority, pair.Imposter = order[0], order[1]
		if counts[order[1]] > counts[order[0]] {
			pair.Majority, pair.Imposter = order[1], order[0]
		}
	}
	return pair
}
