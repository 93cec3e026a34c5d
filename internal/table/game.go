package table

import (
	"time"

	"github.com/cardroom/cardroom/internal/bot"
	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/internal/history"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/poker"
)

// HandleAction submits a betting decision from a seated player. Engine
// rejections come back as engine sentinel errors with the table left
// untouched.
func (t *Table) HandleAction(playerID string, action engine.Action, amount int) error {
	return t.withEngine(func() error {
		if !t.inHandLocked() {
			return ErrNoHandInProgress
		}
		seat := t.seatOfLocked(playerID)
		if seat < 0 {
			return ErrNotSeated
		}
		if err := t.hand.Apply(seat, action, amount); err != nil {
			return err
		}
		t.flushLocked()
		return nil
	})
}

// withEngine runs fn under the table lock with engine panic
// containment: an invariant violation terminates this table and
// notifies the room, and never propagates to the caller's goroutine
// beyond an error.
func (t *Table) withEngine(fn func() error) error {
	panicked := false
	t.mu.Lock()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				handID := ""
				if t.hand != nil {
					handID = t.hand.ID()
				}
				t.logger.Error("engine fault, terminating table", "panic", r, "hand", handID)
				t.terminated = true
				t.stopTimersLocked()
				t.hand = nil
				err = ErrTableTerminated
			}
		}()
		if t.terminated {
			return ErrTableTerminated
		}
		return fn()
	}()
	t.mu.Unlock()
	t.drainHistory()

	if panicked {
		t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeError, protocol.ErrorPayload{
			Code:    "table_closed",
			Message: "internal table fault",
		}))
	}
	return err
}

// scheduleStartLocked arms the between-hand cooldown when a new hand
// could begin. Idempotent while a timer is pending.
func (t *Table) scheduleStartLocked() {
	if t.terminated || t.startTimer != nil || t.inHandLocked() {
		return
	}
	if t.eligibleLocked() < 2 {
		return
	}
	t.startTimer = t.clock.AfterFunc(t.cfg.AutoStartDelay, t.autoStart)
}

func (t *Table) autoStart() {
	_ = t.withEngine(func() error {
		t.startTimer = nil
		if t.inHandLocked() || t.eligibleLocked() < 2 {
			return nil
		}
		t.startHandLocked()
		return nil
	})
}

// eligibleLocked counts seats able to be dealt into the next hand.
func (t *Table) eligibleLocked() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.Chips > 0 && p.State != engine.StateSittingOut {
			n++
		}
	}
	return n
}

func (t *Table) nextEligibleLocked(from int) int {
	n := len(t.seats)
	if from < 0 {
		from = n - 1
	}
	for i := 1; i <= n; i++ {
		s := (from + i) % n
		p := t.seats[s]
		if p != nil && p.Chips > 0 && p.State != engine.StateSittingOut {
			return s
		}
	}
	return -1
}

func (t *Table) startHandLocked() {
	dealer := t.nextEligibleLocked(t.dealer)
	if dealer < 0 {
		return
	}
	startChips := make(map[string]int)
	for _, p := range t.seats {
		if p != nil {
			startChips[p.ID] = p.Chips
		}
	}

	deck := poker.NewDeck(t.rng)
	h := engine.NewHand(t.handID(), t.handNumber+1, engine.Config{
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		Ante:       t.cfg.Ante,
	}, t.seats, dealer, deck)
	if err := h.Start(); err != nil {
		t.logger.Debug("hand not started", "error", err)
		return
	}

	t.handNumber++
	t.hand = h
	t.dealer = h.Dealer()
	t.handStart = t.clock.Now()
	t.revealed = make(map[string][]poker.Card)
	t.rec = newRecorder(h.ID(), t.cfg, t.handNumber, t.handStart, t.seats, startChips)
	t.logger.Info("hand started", "hand", h.ID(), "number", t.handNumber, "dealer", t.dealer)
	t.flushLocked()
}

// flushLocked drains the engine's event buffer and turns each event
// into protocol traffic, history lines and timer updates. Hole cards
// are delivered only to their owner; showdown reveals go to the room.
func (t *Table) flushLocked() {
	if t.hand == nil {
		return
	}
	for _, ev := range t.hand.Events() {
		switch e := ev.(type) {
		case engine.PhaseChanged:
			if t.rec != nil {
				t.rec.startPhase(e.Phase)
			}
			t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeGameState, t.stateLocked("")))

		case engine.BlindPosted:
			if t.rec != nil {
				action := "post_sb"
				if e.Big {
					action = "post_bb"
				}
				t.rec.action(e.PlayerID, action, e.Amount)
			}

		case engine.AntePosted:
			if t.rec != nil {
				t.rec.action(e.PlayerID, "ante", e.Amount)
			}

		case engine.HoleCardsDealt:
			if p := t.hand.PlayerAt(e.Seat); p != nil && !p.IsBot {
				t.bc.ToUser(e.PlayerID, protocol.MustEnvelope(protocol.TypeDealCards, protocol.DealCardsPayload{
					Phase:    engine.Preflop.String(),
					Cards:    e.Cards,
					PlayerID: e.PlayerID,
				}))
			}

		case engine.CommunityDealt:
			t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeDealCards, protocol.DealCardsPayload{
				Phase: e.Phase.String(),
				Cards: e.Cards,
			}))

		case engine.PlayerActed:
			t.met.ActionsTotal.WithLabelValues(e.Action.String()).Inc()
			if t.rec != nil {
				t.rec.action(e.PlayerID, e.Action.String(), e.Amount)
			}
			t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypePlayerAction, protocol.PlayerActionPayload{
				PlayerID: e.PlayerID,
				Action:   e.Action.String(),
				Amount:   e.Amount,
				Chips:    e.Chips,
				Pot:      e.Pot,
			}))

		case engine.ActionOn:
			t.armActorLocked(e)

		case engine.HandFinished:
			t.finishHandLocked(e)
		}
	}
}

// armActorLocked starts the action deadline for the new actor and, for
// bot seats, the humanizing decision delay.
func (t *Table) armActorLocked(e engine.ActionOn) {
	t.deadline = t.clock.Now().Add(t.cfg.ActionTimeout)
	if t.actionTimer != nil {
		t.actionTimer.Stop()
	}
	if t.botTimer != nil {
		t.botTimer.Stop()
		t.botTimer = nil
	}
	number, seat := t.hand.Number(), e.Seat
	t.actionTimer = t.clock.AfterFunc(t.cfg.ActionTimeout, func() {
		t.onActionTimeout(number, seat)
	})

	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeGameState, t.stateLocked("")))

	if _, isBot := t.deciders[seat]; isBot {
		t.botTimer = t.clock.AfterFunc(t.botDelay(), func() {
			t.botAct(number, seat)
		})
		return
	}
	la := t.hand.LegalActionsFor(seat)
	t.bc.ToUser(e.PlayerID, protocol.MustEnvelope(protocol.TypeYourTurn, protocol.YourTurnPayload{
		CallAmount: la.CallAmount,
		MinRaise:   la.MinRaiseTo,
		MaxRaise:   la.MaxRaiseTo,
		CanCheck:   la.CanCheck,
		CanRaise:   la.CanRaise,
		Deadline:   t.deadline.UnixMilli(),
	}))
}

func (t *Table) botDelay() time.Duration {
	d := t.cfg.BotDelayMin
	if span := t.cfg.BotDelayMax - t.cfg.BotDelayMin; span > 0 {
		d += time.Duration(t.rng.Int63n(int64(span)))
	}
	return d
}

// onActionTimeout resolves an expired deadline: fold facing a bet,
// check otherwise. Stale fires are ignored by the hand-number and
// actor guards.
func (t *Table) onActionTimeout(number uint64, seat int) {
	_ = t.withEngine(func() error {
		if t.hand == nil || t.hand.Number() != number || t.hand.Actor() != seat {
			return nil
		}
		t.logger.Info("action timeout", "hand", t.hand.ID(), "seat", seat)
		t.hand.Timeout(seat)
		t.flushLocked()
		return nil
	})
}

// botAct asks the seat's decider for a move and plays it.
func (t *Table) botAct(number uint64, seat int) {
	_ = t.withEngine(func() error {
		if t.hand == nil || t.hand.Number() != number || t.hand.Actor() != seat {
			return nil
		}
		decider := t.deciders[seat]
		if decider == nil {
			t.hand.Timeout(seat)
			t.flushLocked()
			return nil
		}
		dec := decider.Decide(t.botViewLocked(seat))
		if err := t.hand.Apply(seat, dec.Action, dec.Amount); err != nil {
			t.logger.Warn("bot produced illegal action", "seat", seat, "action", dec.Action, "error", err)
			t.hand.Timeout(seat)
		}
		t.flushLocked()
		return nil
	})
}

func (t *Table) botViewLocked(seat int) bot.View {
	p := t.hand.PlayerAt(seat)
	la := t.hand.LegalActionsFor(seat)

	inHand := 0
	for i := range t.seats {
		if q := t.hand.PlayerAt(i); q != nil && q.InHand() {
			inHand++
		}
	}

	// Position in [0,1]: seats still in the hand ordered clockwise from
	// the dealer, the button itself scoring 1.
	position := 1.0
	if inHand > 1 {
		dist, rank := 0, 0
		n := len(t.seats)
		for i := 1; i <= n; i++ {
			s := (t.hand.Dealer() + i) % n
			if q := t.hand.PlayerAt(s); q != nil && q.InHand() {
				rank++
				if s == seat {
					dist = rank
				}
			}
		}
		position = float64(dist-1) / float64(inHand-1)
	}

	return bot.View{
		Hole:       p.HoleCards,
		Community:  t.hand.Community(),
		Pot:        t.hand.PotTotal(),
		BigBlind:   t.cfg.BigBlind,
		Chips:      p.Chips,
		CallAmount: la.CallAmount,
		CanCheck:   la.CanCheck,
		CanRaise:   la.CanRaise,
		MinRaiseTo: la.MinRaiseTo,
		MaxRaiseTo: la.MaxRaiseTo,
		Position:   position,
		Opponents:  inHand - 1,
	}
}

// finishHandLocked settles the terminal event: reveal showdown cards,
// publish the result, file history, free departing seats, and arm the
// next hand's cooldown.
func (t *Table) finishHandLocked(e engine.HandFinished) {
	if t.actionTimer != nil {
		t.actionTimer.Stop()
		t.actionTimer = nil
	}
	if t.botTimer != nil {
		t.botTimer.Stop()
		t.botTimer = nil
	}

	for _, s := range e.Showdown {
		t.revealed[s.PlayerID] = s.Cards
		t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeDealCards, protocol.DealCardsPayload{
			Phase:    engine.Showdown.String(),
			Cards:    s.Cards,
			PlayerID: s.PlayerID,
		}))
	}

	winners := make([]protocol.HandWinner, 0, len(e.Winners))
	for _, w := range e.Winners {
		winners = append(winners, protocol.HandWinner{
			PlayerID: w.PlayerID,
			Amount:   w.Amount,
			HandType: w.HandType,
			BestFive: w.BestFive,
		})
	}
	finalPot := engine.PotTotal(e.Pots)
	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeHandResult, protocol.HandResultPayload{
		HandID:    e.HandID,
		Winners:   winners,
		Community: e.Community,
		FinalPot:  finalPot,
	}))

	duration := t.clock.Now().Sub(t.handStart)
	t.met.HandsCompleted.Inc()
	t.met.HandDuration.Observe(duration.Seconds())
	t.logger.Info("hand finished", "hand", e.HandID, "pot", finalPot, "duration", duration)

	if t.rec != nil && t.sink != nil {
		t.pending = append(t.pending, t.rec.finish(t.clock.Now(), e, t.seats))
	}
	t.rec = nil

	for seat := range t.leaving {
		t.freeSeatLocked(seat)
	}
	t.scheduleStartLocked()
}

// drainHistory delivers finished-hand records to the sink. The sink
// may write to the archive and the store, so records are captured
// under the lock and handed over here without it. Must be called with
// mu released.
func (t *Table) drainHistory() {
	t.mu.Lock()
	recs := t.pending
	t.pending = nil
	t.mu.Unlock()
	for _, rec := range recs {
		t.sink.Add(rec)
	}
}

// recorder accumulates one hand's history record.
type recorder struct {
	rec    history.Record
	phases []history.PhaseSnapshot
}

func newRecorder(handID string, cfg Config, number uint64, start time.Time, seats []*engine.Player, startChips map[string]int) *recorder {
	r := &recorder{rec: history.Record{
		ID:         handID,
		RoomID:     cfg.ID,
		HandNumber: number,
		StartTime:  start,
		Blinds:     history.Blinds{Small: cfg.SmallBlind, Big: cfg.BigBlind, Ante: cfg.Ante},
	}}
	for _, p := range seats {
		if p == nil || !p.InHand() {
			continue
		}
		r.rec.PlayerSnapshots = append(r.rec.PlayerSnapshots, history.PlayerSnapshot{
			PlayerID:   p.ID,
			Name:       p.Name,
			SeatIndex:  p.Seat,
			StartChips: startChips[p.ID],
		})
	}
	return r
}

// startPhase opens a street bucket for subsequent actions. Blind and
// ante posts land in preflop.
func (r *recorder) startPhase(phase engine.Phase) {
	name := phase.String()
	if phase == engine.Starting {
		name = engine.Preflop.String()
	}
	switch phase {
	case engine.Starting, engine.Preflop, engine.Flop, engine.Turn, engine.River:
	default:
		return
	}
	if n := len(r.phases); n > 0 && r.phases[n-1].Phase == name {
		return
	}
	r.phases = append(r.phases, history.PhaseSnapshot{Phase: name})
}

func (r *recorder) action(playerID, action string, amount int) {
	if len(r.phases) == 0 {
		r.phases = append(r.phases, history.PhaseSnapshot{Phase: engine.Preflop.String()})
	}
	last := &r.phases[len(r.phases)-1]
	last.Actions = append(last.Actions, history.ActionRecord{
		PlayerID: playerID,
		Action:   action,
		Amount:   amount,
	})
}

func (r *recorder) finish(end time.Time, e engine.HandFinished, seats []*engine.Player) history.Record {
	r.rec.EndTime = end
	r.rec.PhaseSnapshots = r.phases
	r.rec.CommunityCards = e.Community
	r.rec.FinalPot = engine.PotTotal(e.Pots)
	for _, w := range e.Winners {
		winner := history.WinnerRecord{PlayerID: w.PlayerID, Amount: w.Amount, HandType: w.HandType}
		for _, s := range e.Showdown {
			if s.PlayerID == w.PlayerID {
				winner.Cards = s.Cards
			}
		}
		r.rec.Winners = append(r.rec.Winners, winner)
	}
	for i, ps := range r.rec.PlayerSnapshots {
		for _, p := range seats {
			if p != nil && p.ID == ps.PlayerID {
				r.rec.PlayerSnapshots[i].EndChips = p.Chips
			}
		}
	}
	return r.rec
}
