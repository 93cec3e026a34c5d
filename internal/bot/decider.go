// Package bot produces betting decisions for house bots and
// matchmaker backfill seats. Decisions are drawn from hand strength,
// pot odds and position, with per-difficulty policies, and are always
// legal for the view they were computed from.
package bot

import (
	"math/rand"

	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/poker"
)

// Difficulty selects the decision policy.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Expert
)

func (d Difficulty) String() string {
	return [...]string{"easy", "medium", "hard", "expert"}[d]
}

// ParseDifficulty maps a config string to a Difficulty; unknown values
// fall back to Medium.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case "easy":
		return Easy
	case "hard":
		return Hard
	case "expert":
		return Expert
	default:
		return Medium
	}
}

// View is everything a bot may see when deciding: its own cards, the
// public hand state, and the legal-action bounds for its seat.
type View struct {
	Hole      []poker.Card
	Community []poker.Card

	Pot      int
	BigBlind int
	Chips    int

	CallAmount int
	CanCheck   bool
	CanRaise   bool
	MinRaiseTo int // smallest legal raise-to total
	MaxRaiseTo int // all-in raise-to total

	// Position in [0,1]: 0 right after the dealer, 1 on the button.
	Position  float64
	Opponents int // players still in the hand besides the bot
}

// Decision is the chosen action; Amount is the raise-to total and is
// meaningful only for Raise.
type Decision struct {
	Action engine.Action
	Amount int
}

// Decider holds the policy and its randomness source.
type Decider struct {
	difficulty Difficulty
	rng        *rand.Rand
}

// New builds a Decider. Pass a seeded rng for reproducible play.
func New(difficulty Difficulty, rng *rand.Rand) *Decider {
	return &Decider{difficulty: difficulty, rng: rng}
}

// Decide returns one legal action for the view.
func (d *Decider) Decide(v View) Decision {
	strength := HandStrength(v.Hole, v.Community)

	var dec Decision
	switch d.difficulty {
	case Easy:
		dec = d.decideEasy(v)
	case Medium:
		dec = d.decideMedium(v, strength)
	case Hard:
		dec = d.decideHard(v, strength, false)
	case Expert:
		dec = d.decideHard(v, strength, true)
	default:
		dec = d.decideMedium(v, strength)
	}
	return d.clamp(v, dec)
}

// decideEasy plays weighted-random, ignoring cards entirely.
func (d *Decider) decideEasy(v View) Decision {
	r := d.rng.Float64()
	switch {
	case r < 0.15:
		return Decision{Action: engine.Fold}
	case r < 0.80:
		if v.CanCheck {
			return Decision{Action: engine.Check}
		}
		return Decision{Action: engine.Call}
	default:
		return d.raiseDecision(v, 0.5)
	}
}

// decideMedium compares hand strength against pot odds.
func (d *Decider) decideMedium(v View, strength float64) Decision {
	if strength >= 0.80 {
		return d.raiseDecision(v, strength)
	}
	if v.CallAmount == 0 {
		if strength >= 0.60 && d.rng.Float64() < 0.4 {
			return d.raiseDecision(v, strength)
		}
		return Decision{Action: engine.Check}
	}
	if strength > potOdds(v) {
		return Decision{Action: engine.Call}
	}
	return Decision{Action: engine.Fold}
}

// decideHard is Medium adjusted by position and opponent count, with a
// low-frequency positional bluff. Expert mode adds mixed lines:
// trap-calls with monsters and balanced raises from call candidates.
func (d *Decider) decideHard(v View, strength float64, expert bool) Decision {
	effective := strength * positionFactor(v.Position)
	if v.Opponents > 2 {
		// More ways to be beaten multiway.
		effective *= 1.0 - 0.05*float64(v.Opponents-2)
	}

	if effective >= 0.80 {
		if expert && d.rng.Float64() < 0.25 {
			// Trap: flat-call (or check) a monster.
			if v.CallAmount == 0 {
				return Decision{Action: engine.Check}
			}
			return Decision{Action: engine.Call}
		}
		return d.raiseDecision(v, effective)
	}

	if v.CallAmount == 0 {
		bluff := 0.06 * v.Position
		if d.rng.Float64() < bluff {
			return d.raiseDecision(v, 0.6)
		}
		if effective >= 0.55 && d.rng.Float64() < 0.5 {
			return d.raiseDecision(v, effective)
		}
		return Decision{Action: engine.Check}
	}

	if effective > potOdds(v) {
		if expert && effective >= 0.60 && d.rng.Float64() < 0.2 {
			return d.raiseDecision(v, effective)
		}
		return Decision{Action: engine.Call}
	}
	return Decision{Action: engine.Fold}
}

// raiseDecision sizes a raise from pot fraction scaled by strength.
func (d *Decider) raiseDecision(v View, strength float64) Decision {
	factor := 0.4 + strength*0.6 + d.rng.Float64()*0.3
	target := v.CallAmount + int(float64(v.Pot)*factor)
	if target < v.MinRaiseTo {
		target = v.MinRaiseTo
	}
	if target > v.MaxRaiseTo {
		target = v.MaxRaiseTo
	}
	return Decision{Action: engine.Raise, Amount: target}
}

// clamp forces the decision onto the nearest legal alternative.
func (d *Decider) clamp(v View, dec Decision) Decision {
	switch dec.Action {
	case engine.Fold:
		// Never fold when checking is free.
		if v.CanCheck {
			return Decision{Action: engine.Check}
		}
		return Decision{Action: engine.Fold}

	case engine.Check:
		if v.CanCheck {
			return dec
		}
		return Decision{Action: engine.Fold}

	case engine.Call:
		if v.CallAmount > 0 {
			return dec
		}
		return Decision{Action: engine.Check}

	case engine.Raise, engine.AllIn:
		if !v.CanRaise {
			if v.CallAmount > 0 {
				return Decision{Action: engine.Call}
			}
			return Decision{Action: engine.Check}
		}
		amount := dec.Amount
		if amount < v.MinRaiseTo {
			amount = v.MinRaiseTo
		}
		if amount > v.MaxRaiseTo {
			amount = v.MaxRaiseTo
		}
		return Decision{Action: engine.Raise, Amount: amount}
	}
	if v.CanCheck {
		return Decision{Action: engine.Check}
	}
	return Decision{Action: engine.Fold}
}

// potOdds returns callAmount / (pot + callAmount).
func potOdds(v View) float64 {
	if v.CallAmount <= 0 {
		return 0
	}
	return float64(v.CallAmount) / float64(v.Pot+v.CallAmount)
}

// positionFactor loosens play toward the button.
func positionFactor(pos float64) float64 {
	return 0.85 + 0.3*pos
}
