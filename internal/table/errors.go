package table

import "errors"

var (
	ErrTableFull        = errors.New("table: table full")
	ErrAlreadySeated    = errors.New("table: player already seated")
	ErrNotSeated        = errors.New("table: player not seated")
	ErrBuyInOutOfRange  = errors.New("table: buy-in out of range")
	ErrBuyInDuringHand  = errors.New("table: cannot add chips during a hand")
	ErrTableTerminated  = errors.New("table: table terminated")
	ErrNoHandInProgress = errors.New("table: no hand in progress")
)
