package game

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPhase   = errors.New("action not allowed in the current phase")
	ErrAlreadyExists  = errors.New("room already exists")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyVoted   = errors.New("player has already voted")
	ErrValidation     = errors.New("validation failed")
	ErrNotAdmin       = errors.New("only the admin can do that")
	ErrStore          = errors.New("store error")
	ErrConnectionLost = errors.New("connection lost")
)

// Describe turns an error returned by the game engine into a message that can be
// shown to a player as is.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		// validation errors carry their own detail after the sentinel prefix
		msg := err.Error()
		if prefix := ErrValidation.Error() + ": "; len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			msg = msg[len(prefix):]
		}
		return capitalize(msg)
	case errors.Is(err, ErrNotFound):
		return "Room or player not found"
	case errors.Is(err, ErrInvalidPhase):
		return "That action isn't available right now"
	case errors.Is(err, ErrAlreadyExists):
		return "A room with that code already exists"
	case errors.Is(err, ErrRoomFull):
		return "The room is full"
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted this round"
	case errors.Is(err, ErrNotAdmin):
		return "Only the room admin can do that"
	case errors.Is(err, ErrConnectionLost):
		return "Connection lost. Retry to reconnect"
	case errors.Is(err, ErrStore):
		return "Something went wrong, please try again"
	default:
		return "Something went wrong, please try again"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
