package game

import "math/rand"

// EffectiveImposterCount is the number of imposters actually dealt for a game with
// the given number of players
func EffectiveImposterCount(settings Settings, players int) int {
	n := settings.ImposterCount
	if max := MaxImposters(players); n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	return n
}

// AssignWords deals the pair to the players: a uniform random permutation of the
// player indices is drawn and the first imposterCount positions receive the
// imposter word. The returned map is keyed by player id.
func AssignWords(players []*Player, pair WordPair, imposterCount int, rng *rand.Rand) map[string]string {
	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	// Fisher–Yates
	for i := len(order) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	words := make(map[string]string, len(players))
	for pos, idx := range order {
		if pos < imposterCount {
			words[players[idx].ID] = pair.Imposter
		} else {
			words[players[idx].ID] = pair.Majority
		}
	}
	return words
}
