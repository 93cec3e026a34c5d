package engine

import "github.com/cardroom/cardroom/poker"

// Event is a tagged record of something observable that happened in
// the hand. The table controller drains events after every mutation
// and turns them into protocol messages; the engine never talks to the
// network itself.
type Event interface {
	event()
}

// PhaseChanged marks a street (or terminal phase) transition.
type PhaseChanged struct {
	Phase     Phase
	Community []poker.Card
	Pot       int
}

// BlindPosted records a forced small or big blind post.
type BlindPosted struct {
	Seat     int
	PlayerID string
	Big      bool
	Amount   int
}

// AntePosted records a forced ante contribution.
type AntePosted struct {
	Seat     int
	PlayerID string
	Amount   int
}

// HoleCardsDealt carries one player's private cards. The controller
// must deliver it only to that player.
type HoleCardsDealt struct {
	Seat     int
	PlayerID string
	Cards    []poker.Card
}

// CommunityDealt carries newly exposed community cards.
type CommunityDealt struct {
	Phase Phase
	Cards []poker.Card
}

// PlayerActed records a voluntary (or timeout-forced) action.
type PlayerActed struct {
	Seat     int
	PlayerID string
	Action   Action
	Amount   int // chips moved by this action
	Chips    int // stack remaining
	Pot      int // running pot total
}

// ActionOn announces whose turn it is and the bounds of a legal
// response.
type ActionOn struct {
	Seat       int
	PlayerID   string
	CallAmount int
	MinRaiseTo int // smallest legal raise-to total
	MaxRaiseTo int // all-in total
}

// Winner is one player's share of the payout.
type Winner struct {
	Seat     int
	PlayerID string
	Amount   int
	HandType string
	BestFive []poker.Card
}

// Showdowner is a player whose hole cards were revealed at showdown.
type Showdowner struct {
	Seat     int
	PlayerID string
	Cards    []poker.Card
}

// HandFinished is the terminal event of every hand.
type HandFinished struct {
	HandID    string
	Number    uint64
	Winners   []Winner
	Showdown  []Showdowner // empty when everyone else folded
	Community []poker.Card
	Pots      []Pot
}

func (PhaseChanged) event()   {}
func (BlindPosted) event()    {}
func (AntePosted) event()     {}
func (HoleCardsDealt) event() {}
func (CommunityDealt) event() {}
func (PlayerActed) event()    {}
func (ActionOn) event()       {}
func (HandFinished) event()   {}
