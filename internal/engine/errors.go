package engine

import "errors"

// Domain rejections. The hand state is never mutated when one of these
// is returned.
var (
	ErrWrongPhase        = errors.New("engine: action not valid in current phase")
	ErrHandInProgress    = errors.New("engine: hand already in progress")
	ErrNotEnoughPlayers  = errors.New("engine: not enough players to start")
	ErrUnknownSeat       = errors.New("engine: no player at seat")
	ErrNotYourTurn       = errors.New("engine: not your turn")
	ErrNotActive         = errors.New("engine: player cannot act")
	ErrCannotCheck       = errors.New("engine: cannot check facing a bet")
	ErrNothingToCall     = errors.New("engine: nothing to call")
	ErrRaiseTooSmall     = errors.New("engine: raise below minimum")
	ErrRaiseBarred       = errors.New("engine: raising not reopened")
	ErrInsufficientChips = errors.New("engine: insufficient chips")
)
