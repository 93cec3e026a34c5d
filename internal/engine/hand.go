// Package engine implements the per-hand Texas Hold'em state machine:
// blinds, streets, betting legality, side pots, and payout. The engine
// is purely synchronous and single-threaded; the table controller owns
// the lock and all timers, feeds actions in, and drains the event
// stream out.
package engine

import (
	"fmt"

	"github.com/cardroom/cardroom/poker"
)

// Config carries the stake structure for one hand.
type Config struct {
	SmallBlind int
	BigBlind   int
	Ante       int
}

// Hand drives a single deal from shuffle to payout. Construct one per
// hand; a finished Hand is immutable.
type Hand struct {
	cfg    Config
	id     string
	number uint64

	seats []*Player // table seat array, nil for empty seats
	deck  *poker.Deck

	phase     Phase
	dealer    int
	sbSeat    int
	bbSeat    int
	actor     int
	community []poker.Card

	currentBet      int
	minRaise        int // smallest legal raise increment
	lastRaiseAmount int

	owed   map[int]bool // seats that still owe a voluntary action
	barred map[int]bool // seats that may not raise (under-raise rule)

	preRaiseWager int // actor's street wager before the raise being applied

	pots   []Pot
	events []Event
}

// NewHand wires a hand over the table's seat array. The dealer seat is
// advanced to the nearest occupied eligible seat if needed when the
// hand starts.
func NewHand(id string, number uint64, cfg Config, seats []*Player, dealer int, deck *poker.Deck) *Hand {
	return &Hand{
		cfg:    cfg,
		id:     id,
		number: number,
		seats:  seats,
		deck:   deck,
		phase:  Waiting,
		dealer: dealer,
		actor:  -1,
		owed:   make(map[int]bool),
		barred: make(map[int]bool),
	}
}

// ID returns the hand identifier.
func (h *Hand) ID() string { return h.id }

// Number returns the table-scoped hand counter.
func (h *Hand) Number() uint64 { return h.number }

// Phase returns the current phase.
func (h *Hand) Phase() Phase { return h.phase }

// Dealer returns the dealer button seat.
func (h *Hand) Dealer() int { return h.dealer }

// Actor returns the seat whose turn it is, or -1.
func (h *Hand) Actor() int { return h.actor }

// Community returns the dealt community cards.
func (h *Hand) Community() []poker.Card { return h.community }

// CurrentBet returns the highest per-street wager committed so far.
func (h *Hand) CurrentBet() int { return h.currentBet }

// MinRaise returns the smallest legal raise increment this street.
func (h *Hand) MinRaise() int { return h.minRaise }

// LastRaiseAmount returns the size of the most recent full raise.
func (h *Hand) LastRaiseAmount() int { return h.lastRaiseAmount }

// Pots returns the final pot layers; empty before the hand concludes.
func (h *Hand) Pots() []Pot { return h.pots }

// PotTotal returns the chips committed to the hand so far.
func (h *Hand) PotTotal() int {
	total := 0
	for _, p := range h.seats {
		if p != nil {
			total += p.TotalWager
		}
	}
	return total
}

// PlayerAt returns the player at a seat, nil if empty.
func (h *Hand) PlayerAt(seat int) *Player {
	if seat < 0 || seat >= len(h.seats) {
		return nil
	}
	return h.seats[seat]
}

// Events drains and returns the pending event buffer.
func (h *Hand) Events() []Event {
	ev := h.events
	h.events = nil
	return ev
}

func (h *Hand) emit(e Event) { h.events = append(h.events, e) }

// ToCall returns how many chips the seat needs to match the current
// bet.
func (h *Hand) ToCall(seat int) int {
	p := h.PlayerAt(seat)
	if p == nil {
		return 0
	}
	toCall := h.currentBet - p.CurrentWager
	if toCall < 0 {
		return 0
	}
	return toCall
}

// Start posts blinds and antes, deals hole cards, and opens preflop
// betting. It fails if the hand already ran or fewer than two players
// can be dealt in.
func (h *Hand) Start() error {
	if h.phase != Waiting {
		return ErrHandInProgress
	}

	active := 0
	for _, p := range h.seats {
		if p == nil {
			continue
		}
		p.resetForHand()
		if p.State == StateActive {
			active++
		}
	}
	if active < 2 {
		return ErrNotEnoughPlayers
	}

	h.phase = Starting
	h.emit(PhaseChanged{Phase: Starting})

	if d := h.PlayerAt(h.dealer); d == nil || !d.CanAct() {
		h.dealer = h.nextFrom(h.dealer, (*Player).CanAct)
	}
	h.PlayerAt(h.dealer).IsDealer = true

	// Heads-up the dealer posts the small blind and acts first
	// preflop; otherwise blinds sit left of the button.
	if active == 2 {
		h.sbSeat = h.dealer
	} else {
		h.sbSeat = h.nextFrom(h.dealer, (*Player).CanAct)
	}
	h.bbSeat = h.nextFrom(h.sbSeat, (*Player).CanAct)

	if h.cfg.Ante > 0 {
		h.postAntes()
	}
	h.postBlind(h.sbSeat, h.cfg.SmallBlind, false)
	h.postBlind(h.bbSeat, h.cfg.BigBlind, true)
	h.currentBet = h.cfg.BigBlind
	h.minRaise = h.cfg.BigBlind
	h.lastRaiseAmount = h.cfg.BigBlind

	h.deck.Shuffle()
	h.dealHoleCards()

	h.phase = Preflop
	h.emit(PhaseChanged{Phase: Preflop, Pot: h.PotTotal()})

	for _, p := range h.seats {
		if p != nil && p.CanAct() {
			h.owed[p.Seat] = true
		}
	}
	// Scanning clockwise from the big blind lands on the under-the-gun
	// seat, or on the dealer heads-up.
	h.advanceAction(h.bbSeat)
	return nil
}

func (h *Hand) postAntes() {
	for _, seat := range h.inHandOrder(h.sbSeat) {
		p := h.seats[seat]
		ante := h.cfg.Ante
		if ante > p.Chips {
			ante = p.Chips
		}
		// Antes feed the pot without opening a wager to match.
		p.Chips -= ante
		p.TotalWager += ante
		if p.Chips == 0 {
			p.State = StateAllIn
		}
		h.emit(AntePosted{Seat: seat, PlayerID: p.ID, Amount: ante})
	}
}

func (h *Hand) postBlind(seat, amount int, big bool) {
	p := h.PlayerAt(seat)
	paid := p.commit(amount)
	if big {
		p.IsBigBlind = true
		p.LastAction = ActionPostBB
	} else {
		p.IsSmallBlind = true
		p.LastAction = ActionPostSB
	}
	h.emit(BlindPosted{Seat: seat, PlayerID: p.ID, Big: big, Amount: paid})
}

func (h *Hand) dealHoleCards() {
	order := h.inHandOrder(h.sbSeat)
	for round := 0; round < 2; round++ {
		for _, seat := range order {
			p := h.seats[seat]
			p.HoleCards = append(p.HoleCards, h.deck.Deal())
		}
	}
	for _, seat := range order {
		p := h.seats[seat]
		h.emit(HoleCardsDealt{Seat: seat, PlayerID: p.ID, Cards: append([]poker.Card(nil), p.HoleCards...)})
	}
}

// Apply validates and executes one action by the seat whose turn it
// is. Rejected actions leave the hand untouched.
func (h *Hand) Apply(seat int, action Action, amount int) error {
	if !h.phase.isStreet() {
		return ErrWrongPhase
	}
	p := h.PlayerAt(seat)
	if p == nil {
		return ErrUnknownSeat
	}
	if seat != h.actor {
		return ErrNotYourTurn
	}
	if !p.CanAct() {
		return ErrNotActive
	}

	toCall := h.currentBet - p.CurrentWager
	var moved int

	switch action {
	case Fold:
		p.State = StateFolded
		p.LastAction = ActionFold

	case Check:
		if toCall > 0 {
			return ErrCannotCheck
		}
		p.LastAction = ActionCheck

	case Call:
		if toCall <= 0 {
			return ErrNothingToCall
		}
		moved = p.commit(toCall)
		if p.State == StateAllIn {
			p.LastAction = ActionAllIn
		} else {
			p.LastAction = ActionCall
		}

	case Raise:
		if err := h.applyRaise(p, amount); err != nil {
			return err
		}
		moved = p.CurrentWager - h.preRaiseWager
		if p.State == StateAllIn {
			p.LastAction = ActionAllIn
		} else {
			p.LastAction = ActionRaise
		}

	case AllIn:
		if p.Chips == 0 {
			return ErrInsufficientChips
		}
		target := p.CurrentWager + p.Chips
		if target > h.currentBet {
			if err := h.applyRaise(p, target); err != nil {
				return err
			}
			moved = p.CurrentWager - h.preRaiseWager
		} else {
			moved = p.commit(p.Chips)
		}
		p.LastAction = ActionAllIn

	default:
		return fmt.Errorf("engine: unknown action %d", action)
	}

	delete(h.owed, seat)
	h.emit(PlayerActed{
		Seat:     seat,
		PlayerID: p.ID,
		Action:   action,
		Amount:   moved,
		Chips:    p.Chips,
		Pot:      h.PotTotal(),
	})
	h.advanceAction(seat)
	return nil
}

// applyRaise validates a raise to the street total target and commits
// the chips. A full-size raise reopens the action; an all-in short of
// the minimum updates the price to call but closes raising for the
// rest of the street.
func (h *Hand) applyRaise(p *Player, target int) error {
	maxTo := p.CurrentWager + p.Chips
	if target > maxTo {
		return ErrInsufficientChips
	}
	if target <= h.currentBet {
		return ErrRaiseTooSmall
	}
	if h.barred[p.Seat] {
		return ErrRaiseBarred
	}

	fullRaiseTo := h.currentBet + h.minRaise
	underRaise := target < fullRaiseTo
	if underRaise && target != maxTo {
		return ErrRaiseTooSmall
	}

	h.preRaiseWager = p.CurrentWager
	p.commit(target - p.CurrentWager)

	if underRaise {
		// The short all-in raises the price to call but nobody may
		// re-raise for the remainder of the street.
		h.currentBet = target
		for _, other := range h.seats {
			if other == nil || other.Seat == p.Seat || !other.CanAct() {
				continue
			}
			h.barred[other.Seat] = true
			if other.CurrentWager < target {
				h.owed[other.Seat] = true
			}
		}
		return nil
	}

	raiseBy := target - h.currentBet
	h.currentBet = target
	h.minRaise = raiseBy
	h.lastRaiseAmount = raiseBy
	h.barred = make(map[int]bool)
	for _, other := range h.seats {
		if other != nil && other.Seat != p.Seat && other.CanAct() {
			h.owed[other.Seat] = true
		}
	}
	return nil
}

// Timeout resolves an elapsed action deadline: fold facing a bet,
// check otherwise. Stale timers (seat no longer the actor, hand moved
// on) are ignored.
func (h *Hand) Timeout(seat int) {
	if !h.phase.isStreet() || seat != h.actor {
		return
	}
	if h.ToCall(seat) > 0 {
		_ = h.Apply(seat, Fold, 0)
	} else {
		_ = h.Apply(seat, Check, 0)
	}
}

// ForceFold folds a seat regardless of turn order, used when a player
// is removed mid-hand. Their contributions stay in the pot.
func (h *Hand) ForceFold(seat int) {
	if !h.phase.isStreet() {
		return
	}
	p := h.PlayerAt(seat)
	if p == nil || !p.InHand() {
		return
	}
	if seat == h.actor {
		_ = h.Apply(seat, Fold, 0)
		return
	}
	p.State = StateFolded
	p.LastAction = ActionFold
	delete(h.owed, seat)
	delete(h.barred, seat)
	h.emit(PlayerActed{Seat: seat, PlayerID: p.ID, Action: Fold, Chips: p.Chips, Pot: h.PotTotal()})
	if h.playersInHand() <= 1 {
		h.finishByFold()
	}
}

// advanceAction decides what happens after a state change: end the
// hand on a fold-out, close the street, or hand the turn to the next
// owed player clockwise from `from`.
func (h *Hand) advanceAction(from int) {
	if h.playersInHand() <= 1 {
		h.finishByFold()
		return
	}
	if h.streetClosed() || h.bettingMoot() {
		h.actor = -1
		h.nextPhase()
		return
	}
	h.actor = h.nextFrom(from, func(p *Player) bool {
		return p.CanAct() && h.owed[p.Seat]
	})
	p := h.PlayerAt(h.actor)
	la := h.LegalActionsFor(h.actor)
	h.emit(ActionOn{
		Seat:       h.actor,
		PlayerID:   p.ID,
		CallAmount: la.CallAmount,
		MinRaiseTo: la.MinRaiseTo,
		MaxRaiseTo: la.MaxRaiseTo,
	})
}

// streetClosed reports whether every player who can act has matched
// the current bet and nobody owes an action.
func (h *Hand) streetClosed() bool {
	for _, p := range h.seats {
		if p == nil || !p.CanAct() {
			continue
		}
		if h.owed[p.Seat] {
			return false
		}
		if p.CurrentWager != h.currentBet {
			return false
		}
	}
	return true
}

// bettingMoot reports whether voluntary betting can no longer change
// anything: zero players can act, or exactly one can and owes nothing
// to call. The remaining streets are then dealt straight through.
func (h *Hand) bettingMoot() bool {
	var sole *Player
	count := 0
	for _, p := range h.seats {
		if p != nil && p.CanAct() {
			sole = p
			count++
		}
	}
	if count == 0 {
		return true
	}
	return count == 1 && h.ToCall(sole.Seat) == 0
}

// nextPhase closes the street, deals the next one, and either resumes
// betting or runs the board out to showdown.
func (h *Hand) nextPhase() {
	h.resetStreet()
	switch h.phase {
	case Preflop:
		h.dealCommunity(Flop, 3)
	case Flop:
		h.dealCommunity(Turn, 1)
	case Turn:
		h.dealCommunity(River, 1)
	case River:
		h.showdown()
		return
	default:
		return
	}
	h.advanceAction(h.dealer)
}

func (h *Hand) resetStreet() {
	for _, p := range h.seats {
		if p == nil {
			continue
		}
		p.CurrentWager = 0
		if p.InHand() {
			p.LastAction = ActionNone
		}
	}
	h.currentBet = 0
	h.minRaise = h.cfg.BigBlind
	h.lastRaiseAmount = h.cfg.BigBlind
	h.owed = make(map[int]bool)
	h.barred = make(map[int]bool)
	for _, p := range h.seats {
		if p != nil && p.CanAct() {
			h.owed[p.Seat] = true
		}
	}
}

func (h *Hand) dealCommunity(phase Phase, n int) {
	h.deck.Burn()
	dealt := h.deck.DealN(n)
	h.community = append(h.community, dealt...)
	h.phase = phase
	h.emit(CommunityDealt{Phase: phase, Cards: dealt})
	h.emit(PhaseChanged{Phase: phase, Community: append([]poker.Card(nil), h.community...), Pot: h.PotTotal()})
}

// finishByFold awards everything to the last player holding cards, no
// showdown and no card reveal.
func (h *Hand) finishByFold() {
	var winner *Player
	for _, p := range h.seats {
		if p != nil && p.InHand() {
			winner = p
		}
	}
	h.pots = BuildPots(h.seats)
	total := PotTotal(h.pots)
	winner.Chips += total
	h.actor = -1
	h.phase = Finished
	h.emit(HandFinished{
		HandID:    h.id,
		Number:    h.number,
		Winners:   []Winner{{Seat: winner.Seat, PlayerID: winner.ID, Amount: total}},
		Community: h.community,
		Pots:      h.pots,
	})
	h.emit(PhaseChanged{Phase: Finished})
}

// showdown builds the pot layers, ranks every player still in, and
// pays each layer to its best eligible hand(s). Ties split evenly with
// the integer remainder going to the winner closest clockwise from the
// dealer.
func (h *Hand) showdown() {
	h.phase = Showdown
	h.emit(PhaseChanged{Phase: Showdown, Community: h.community, Pot: h.PotTotal()})

	h.pots = BuildPots(h.seats)

	ranks := make(map[string]poker.HandRank)
	var reveal []Showdowner
	for _, seat := range h.inHandOrder(h.nextFrom(h.dealer, (*Player).InHand)) {
		p := h.seats[seat]
		ranks[p.ID] = poker.EvaluateBest(p.HoleCards, h.community)
		reveal = append(reveal, Showdowner{Seat: seat, PlayerID: p.ID, Cards: p.HoleCards})
	}

	payouts := make(map[string]int)
	for _, pot := range h.pots {
		winners := h.bestOf(pot.Eligible, ranks)
		share := pot.Amount / len(winners)
		for _, id := range winners {
			payouts[id] += share
		}
		if rem := pot.Amount % len(winners); rem > 0 {
			payouts[h.closestClockwise(winners)] += rem
		}
	}

	var winners []Winner
	for _, seat := range h.inHandOrder(h.nextFrom(h.dealer, (*Player).InHand)) {
		p := h.seats[seat]
		amount, ok := payouts[p.ID]
		if !ok {
			continue
		}
		p.Chips += amount
		rank := ranks[p.ID]
		winners = append(winners, Winner{
			Seat:     seat,
			PlayerID: p.ID,
			Amount:   amount,
			HandType: rank.Category.String(),
			BestFive: rank.BestFive,
		})
	}

	h.phase = Finished
	h.emit(HandFinished{
		HandID:    h.id,
		Number:    h.number,
		Winners:   winners,
		Showdown:  reveal,
		Community: h.community,
		Pots:      h.pots,
	})
	h.emit(PhaseChanged{Phase: Finished})
}

// bestOf returns the ids holding the best rank among the eligible set.
func (h *Hand) bestOf(eligible []string, ranks map[string]poker.HandRank) []string {
	var best []string
	for _, id := range eligible {
		rank, ok := ranks[id]
		if !ok {
			continue
		}
		if len(best) == 0 {
			best = []string{id}
			continue
		}
		switch rank.Compare(ranks[best[0]]) {
		case 1:
			best = []string{id}
		case 0:
			best = append(best, id)
		}
	}
	return best
}

// closestClockwise picks, among tied winners, the seat nearest
// clockwise from the dealer. Deterministic remainder assignment.
func (h *Hand) closestClockwise(ids []string) string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := len(h.seats)
	for i := 1; i <= n; i++ {
		p := h.seats[(h.dealer+i)%n]
		if p != nil && want[p.ID] {
			return p.ID
		}
	}
	return ids[0]
}

// playersInHand counts seats still holding cards.
func (h *Hand) playersInHand() int {
	count := 0
	for _, p := range h.seats {
		if p != nil && p.InHand() {
			count++
		}
	}
	return count
}

// nextFrom scans clockwise from (exclusive) seat for a player matching
// pred; -1 if none.
func (h *Hand) nextFrom(seat int, pred func(*Player) bool) int {
	n := len(h.seats)
	for i := 1; i <= n; i++ {
		s := (seat + i) % n
		if p := h.seats[s]; p != nil && pred(p) {
			return s
		}
	}
	return -1
}

// inHandOrder lists in-hand seats clockwise starting at `first`.
func (h *Hand) inHandOrder(first int) []int {
	var order []int
	n := len(h.seats)
	for i := 0; i < n; i++ {
		s := (first + i) % n
		if p := h.seats[s]; p != nil && p.InHand() {
			order = append(order, s)
		}
	}
	return order
}
