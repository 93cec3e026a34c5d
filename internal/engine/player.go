package engine

import "github.com/cardroom/cardroom/poker"

// PlayerState is a player's standing within the current hand.
type PlayerState int

const (
	StateWaiting PlayerState = iota
	StateActive
	StateFolded
	StateAllIn
	StateSittingOut
)

func (s PlayerState) String() string {
	return [...]string{"waiting", "active", "folded", "all_in", "sitting_out"}[s]
}

// LastAction is the most recent thing a player did this street,
// including forced blind posts.
type LastAction int

const (
	ActionNone LastAction = iota
	ActionFold
	ActionCheck
	ActionCall
	ActionRaise
	ActionAllIn
	ActionPostSB
	ActionPostBB
)

func (a LastAction) String() string {
	return [...]string{"none", "fold", "check", "call", "raise", "all_in", "post_sb", "post_bb"}[a]
}

// Player is one seat's participant. It persists across hands; per-hand
// fields are cleared by resetForHand when a new hand starts.
type Player struct {
	ID   string
	Name string
	Seat int

	Chips        int
	CurrentWager int // committed this street
	TotalWager   int // committed this hand

	HoleCards  []poker.Card
	State      PlayerState
	LastAction LastAction

	IsDealer     bool
	IsSmallBlind bool
	IsBigBlind   bool
	IsBot        bool
}

// resetForHand clears per-hand state and marks the player Active when
// they have chips and are not sitting out.
func (p *Player) resetForHand() {
	p.CurrentWager = 0
	p.TotalWager = 0
	p.HoleCards = nil
	p.LastAction = ActionNone
	p.IsDealer = false
	p.IsSmallBlind = false
	p.IsBigBlind = false
	if p.State == StateSittingOut {
		return
	}
	if p.Chips > 0 {
		p.State = StateActive
	} else {
		p.State = StateSittingOut
	}
}

// commit moves up to amount chips into the player's wagers, flipping
// the player to AllIn when the stack empties. It returns the amount
// actually committed.
func (p *Player) commit(amount int) int {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.CurrentWager += amount
	p.TotalWager += amount
	if p.Chips == 0 && p.State == StateActive {
		p.State = StateAllIn
	}
	return amount
}

// InHand reports whether the player still holds cards (has not folded
// or sat out).
func (p *Player) InHand() bool {
	return p.State == StateActive || p.State == StateAllIn
}

// CanAct reports whether the player may still act voluntarily.
func (p *Player) CanAct() bool {
	return p.State == StateActive
}
