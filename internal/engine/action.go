package engine

import "fmt"

// Phase of the hand state machine.
type Phase int

const (
	Waiting Phase = iota
	Starting
	Preflop
	Flop
	Turn
	River
	Showdown
	Finished
)

func (p Phase) String() string {
	return [...]string{"waiting", "starting", "preflop", "flop", "turn", "river", "showdown", "finished"}[p]
}

// isStreet reports whether the phase is a betting round.
func (p Phase) isStreet() bool {
	return p >= Preflop && p <= River
}

// Action is a voluntary player action.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
	AllIn
)

func (a Action) String() string {
	return [...]string{"fold", "check", "call", "raise", "all_in"}[a]
}

// ParseAction maps the wire form back to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	case "all_in":
		return AllIn, nil
	default:
		return 0, fmt.Errorf("engine: unknown action %q", s)
	}
}
