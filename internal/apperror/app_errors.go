package apperror

import "errors"

var (
	ErrNotInGame         = errors.New("player is not in a game")
	ErrGameNotFound      = errors.New("game not found")
	ErrGameFull          = errors.New("game is full or already started")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrInvalidMove       = errors.New("invalid move")
	ErrInvalidRemoval    = errors.New("invalid removal")
	ErrRateLimitExceeded = errors.New("message rate limit exceeded")
)
