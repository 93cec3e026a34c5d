package table

import (
	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/internal/protocol"
)

// PublicState snapshots the table with every hole card redacted except
// showdown reveals.
func (t *Table) PublicState() protocol.GameStatePayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked("")
}

// PrivateStateFor snapshots the table for one player, including their
// own hole cards. Used on join, reconnect and resync.
func (t *Table) PrivateStateFor(playerID string) protocol.GameStatePayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(playerID)
}

func (t *Table) stateLocked(viewer string) protocol.GameStatePayload {
	gs := protocol.GameStatePayload{
		RoomID:     t.cfg.ID,
		Phase:      engine.Waiting.String(),
		DealerSeat: t.dealer,
		ActorSeat:  -1,
	}
	if t.hand != nil {
		gs.HandID = t.hand.ID()
		gs.HandNumber = t.hand.Number()
		gs.Phase = t.hand.Phase().String()
		gs.Community = t.hand.Community()
		gs.Pot = t.hand.PotTotal()
		gs.CurrentBet = t.hand.CurrentBet()
		gs.MinRaise = t.hand.MinRaise()
		gs.DealerSeat = t.hand.Dealer()
		gs.ActorSeat = t.hand.Actor()
		if gs.ActorSeat >= 0 {
			gs.Deadline = t.deadline.UnixMilli()
		}
	}
	for _, p := range t.seats {
		if p == nil {
			continue
		}
		seat := protocol.SeatState{
			PlayerID:     p.ID,
			Name:         p.Name,
			SeatIndex:    p.Seat,
			Chips:        p.Chips,
			CurrentWager: p.CurrentWager,
			TotalWager:   p.TotalWager,
			State:        p.State.String(),
			IsDealer:     p.IsDealer,
			IsSmallBlind: p.IsSmallBlind,
			IsBigBlind:   p.IsBigBlind,
			IsBot:        p.IsBot,
		}
		if p.LastAction != engine.ActionNone {
			seat.LastAction = p.LastAction.String()
		}
		if p.ID == viewer {
			seat.HoleCards = p.HoleCards
		} else if cards, ok := t.revealed[p.ID]; ok {
			seat.HoleCards = cards
		}
		gs.Seats = append(gs.Seats, seat)
	}
	return gs
}

// Stacks returns every human occupant's current chips, used to credit
// balances back to the store when the table closes.
func (t *Table) Stacks() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	stacks := make(map[string]int)
	for _, p := range t.seats {
		if p != nil && !p.IsBot {
			stacks[p.ID] = p.Chips
		}
	}
	return stacks
}

// Chat relays a table chat line to the room. Rate limiting happens at
// the connection layer.
func (t *Table) Chat(playerID, playerName, message string) {
	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeChat, protocol.ChatPayload{
		PlayerID:   playerID,
		PlayerName: playerName,
		Message:    message,
	}))
}
