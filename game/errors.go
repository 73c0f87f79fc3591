package game

// GameError is a custom error type for game-related errors
type GameError string

// Error implements the error interface
func (e GameError) Error() string {
	return string(e)
}

const (
	ErrNotFound         GameError = "game not found"
	ErrPlayerNotFound   GameError = "player not found in game"
	ErrInvalidCommand   GameError = "invalid command"
	ErrAlreadyCompleted GameError = "game already completed"
)
