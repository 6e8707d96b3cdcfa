package game

import (
	"fmt"
	"io"
	"math/rand"

	"gopkg.in/yaml.v3"
)

// WordPair is the majority word and the related imposter word of one game
type WordPair struct {
	Majority string `yaml:"majority" json:"majority"`
	Imposter string `yaml:"imposter" json:"imposter"`
}

// WordBank holds the word pairs available per difficulty
type WordBank map[Difficulty][]WordPair

// DefaultWordBank returns the built-in word pairs
func DefaultWordBank() WordBank {
	return WordBank{
		DifficultyEasy: {
			{Majority: "Cat", Imposter: "Dog"},
			{Majority: "Apple", Imposter: "Orange"},
			{Majority: "Sun", Imposter: "Moon"},
			{Majority: "Coffee", Imposter: "Tea"},
			{Majority: "Beach", Imposter: "Pool"},
			{Majority: "Car", Imposter: "Bus"},
			{Majority: "Pizza", Imposter: "Burger"},
			{Majority: "Summer", Imposter: "Winter"},
		},
		DifficultyMedium: {
			{Majority: "Guitar", Imposter: "Violin"},
			{Majority: "Doctor", Imposter: "Nurse"},
			{Majority: "Castle", Imposter: "Palace"},
			{Majority: "River", Imposter: "Lake"},
			{Majority: "Pencil", Imposter: "Crayon"},
			{Majority: "Library", Imposter: "Bookstore"},
			{Majority: "Helicopter", Imposter: "Airplane"},
			{Majority: "Wolf", Imposter: "Fox"},
		},
		DifficultyHard: {
			{Majority: "Butter", Imposter: "Margarine"},
			{Majority: "Alligator", Imposter: "Crocodile"},
			{Majority: "Mist", Imposter: "Fog"},
			{Majority: "Jam", Imposter: "Jelly"},
			{Majority: "Frog", Imposter: "Toad"},
			{Majority: "Biscuit", Imposter: "Cookie"},
			{Majority: "Harbor", Imposter: "Marina"},
			{Majority: "Poem", Imposter: "Song"},
		},
	}
}

// LoadWordBank reads a YAML word bank keyed by difficulty:
//
//	easy:
//	  - {majority: Cat, imposter: Dog}
func LoadWordBank(r io.Reader) (WordBank, error) {
	var raw map[string][]WordPair
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode word bank: %w", err)
	}

	bank := make(WordBank, len(raw))
	for key, pairs := range raw {
		d := Difficulty(key)
		if !d.Valid() {
			return nil, fmt.Errorf("word bank: unknown difficulty %q", key)
		}
		for i, p := range pairs {
			if p.Majority == "" || p.Imposter == "" {
				return nil, fmt.Errorf("word bank: %s pair %d has an empty word", key, i)
			}
			if p.Majority == p.Imposter {
				return nil, fmt.Errorf("word bank: %s pair %d uses the same word twice", key, i)
			}
		}
		bank[d] = pairs
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return bank, nil
}

// Validate checks that every difficulty has at least one pair
func (b WordBank) Validate() error {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if len(b[d]) == 0 {
			return fmt.Errorf("word bank: no pairs for difficulty %s", d)
		}
	}
	return nil
}

// Pick selects a random pair for the difficulty, falling back to medium
func (b WordBank) Pick(rng *rand.Rand, d Difficulty) WordPair {
	pairs := b[d]
	if len(pairs) == 0 {
		pairs = b[DifficultyMedium]
	}
	return pairs[rng.Intn(len(pairs))]
}
