package engine

// LegalActions summarizes what a seat may do right now. The bot
// decider and the your_turn protocol event are built from it.
type LegalActions struct {
	CanFold    bool
	CanCheck   bool
	CanCall    bool
	CallAmount int
	CanRaise   bool
	MinRaiseTo int // smallest legal raise-to total (all-in total if short)
	MaxRaiseTo int // raise-to total when shoving the whole stack
}

// LegalActionsFor computes the options open to a seat. The zero value
// is returned when the seat cannot act at all.
func (h *Hand) LegalActionsFor(seat int) LegalActions {
	p := h.PlayerAt(seat)
	if p == nil || !p.CanAct() || !h.phase.isStreet() || seat != h.actor {
		return LegalActions{}
	}

	toCall := h.ToCall(seat)
	la := LegalActions{
		CanFold:    true,
		CanCheck:   toCall == 0,
		CanCall:    toCall > 0,
		CallAmount: toCall,
	}
	if la.CallAmount > p.Chips {
		la.CallAmount = p.Chips
	}

	maxTo := p.CurrentWager + p.Chips
	if maxTo > h.currentBet && !h.barred[seat] {
		la.CanRaise = true
		la.MinRaiseTo = h.currentBet + h.minRaise
		if la.MinRaiseTo > maxTo {
			la.MinRaiseTo = maxTo
		}
		la.MaxRaiseTo = maxTo
	}
	return la
}
