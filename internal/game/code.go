package game

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	RoomCodeLength = 6
	roomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateRoomCode generates an alphanumeric room code of the given length
func GenerateRoomCode(length int) string {
	if length <= 0 {
		length = RoomCodeLength
	}
	b := make([]byte, length)
	rand.Read(b)

	for i := range b {
		b[i] = roomCodeChars[b[i]%byte(len(roomCodeChars))]
	}

	return string(b)
}

// ValidateCode checks a normalized room code
func ValidateCode(code string) error {
	if len(code) != RoomCodeLength {
		return fmt.Errorf("%w: room code must be %d characters", ErrValidation, RoomCodeLength)
	}
	for _, c := range code {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return fmt.Errorf("%w: room code must be letters and digits only", ErrValidation)
		}
	}
	return nil
}

const MaxNameLength = 20

// ValidateName trims and checks a display name
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len([]rune(name)) > MaxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, MaxNameLength)
	}
	return name, nil
}

const MaxClueLength = 32

// ValidateClue trims and checks a one-word clue
func ValidateClue(clue string) (string, error) {
	clue = strings.TrimSpace(clue)
	if clue == "" {
		return "", fmt.Errorf("%w: clue is required", ErrValidation)
	}
	if strings.ContainsAny(clue, " \t\n\r") {
		return "", fmt.Errorf("%w: clue must be a single word", ErrValidation)
	}
	if len([]rune(clue)) > MaxClueLength {
		return "", fmt.Errorf("%w: clue must be at most %d characters", ErrValidation, MaxClueLength)
	}
	return clue, nil
}
