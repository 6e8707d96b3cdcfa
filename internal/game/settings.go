package game

import "fmt"

// Difficulty selects which word pairs a game draws from
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

const (
	MinPlayers   = 2
	MinRoundTime = 10
	MaxRoundTime = 600
)

// Settings are the lobby options chosen by the admin
type Settings struct {
	TotalPlayers     int        `json:"totalPlayers"`
	ImposterCount    int        `json:"imposterCount"`
	Difficulty       Difficulty `json:"difficulty"`
	RoundTimeSeconds int        `json:"roundTimeSeconds"`
}

// DefaultSettings returns the settings a new room starts with
func DefaultSettings() Settings {
	return Settings{
		TotalPlayers:     8,
		ImposterCount:    1,
		Difficulty:       DifficultyMedium,
		RoundTimeSeconds: 60,
	}
}

// MaxImposters is the largest imposter count allowed for a given number of players
func MaxImposters(players int) int {
	return players / 2
}

// Clamp forces ImposterCount into [1, floor(TotalPlayers/2)]
func (s Settings) Clamp() Settings {
	if max := MaxImposters(s.TotalPlayers); s.ImposterCount > max {
		s.ImposterCount = max
	}
	if s.ImposterCount < 1 {
		s.ImposterCount = 1
	}
	return s
}

// Validate checks the settings against the bounds of the game. maxPlayers is the
// server-wide room capacity.
func (s Settings) Validate(maxPlayers int) error {
	if s.TotalPlayers < MinPlayers || s.TotalPlayers > maxPlayers {
		return fmt.Errorf("%w: total players must be between %d and %d", ErrValidation, MinPlayers, maxPlayers)
	}
	if s.ImposterCount < 1 || s.ImposterCount > MaxImposters(s.TotalPlayers) {
		return fmt.Errorf("%w: imposter count must be between 1 and %d", ErrValidation, MaxImposters(s.TotalPlayers))
	}
	if !s.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrValidation, s.Difficulty)
	}
	if s.RoundTimeSeconds < MinRoundTime || s.RoundTimeSeconds > MaxRoundTime {
		return fmt.Errorf("%w: round time must be between %d and %d seconds", ErrValidation, MinRoundTime, MaxRoundTime)
	}
	return nil
}

// SettingsPatch is a partial settings update; nil fields are left unchanged
type SettingsPatch struct {
	TotalPlayers     *int        `json:"totalPlayers,omitempty"`
	ImposterCount    *int        `json:"imposterCount,omitempty"`
	Difficulty       *Difficulty `json:"difficulty,omitempty"`
	RoundTimeSeconds *int        `json:"roundTimeSeconds,omitempty"`
}

// Apply merges the patch into s. The result is clamped but not validated.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.TotalPlayers != nil {
		s.TotalPlayers = *p.TotalPlayers
	}
	if p.ImposterCount != nil {
		s.ImposterCount = *p.ImposterCount
	}
	if p.Difficulty != nil {
		s.Difficulty = *p.Difficulty
	}
	if p.RoundTimeSeconds != nil {
		s.RoundTimeSeconds = *p.RoundTimeSeconds
	}
	return s.Clamp()
}
