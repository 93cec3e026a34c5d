package engine

import "sort"

// Pot is one layer of the hand's money: an amount plus the ids of the
// players eligible to win it.
type Pot struct {
	Amount   int
	Eligible []string
	Side     bool
}

// BuildPots partitions the hand's total wagers into a main pot and
// side pots layered by ascending all-in thresholds. Folded players'
// chips stay in the layers they contributed to but folded players are
// never eligible. A top layer with a single eligible player is that
// player's uncalled bet coming back; a top layer only folded players
// funded is forfeited into the layer beneath it.
func BuildPots(players []*Player) []Pot {
	// Ascending distinct caps set by all-in players still in the hand.
	capSet := make(map[int]bool)
	for _, p := range players {
		if p == nil {
			continue
		}
		if p.State == StateAllIn && p.TotalWager > 0 {
			capSet[p.TotalWager] = true
		}
	}
	caps := make([]int, 0, len(capSet))
	for c := range capSet {
		caps = append(caps, c)
	}
	sort.Ints(caps)

	// Top layer for everything above the highest cap.
	highest := 0
	for _, p := range players {
		if p != nil && p.TotalWager > highest {
			highest = p.TotalWager
		}
	}
	if len(caps) == 0 || caps[len(caps)-1] < highest {
		caps = append(caps, highest)
	}

	var pots []Pot
	prev := 0
	for _, c := range caps {
		layer := Pot{Side: len(pots) > 0}
		for _, p := range players {
			if p == nil {
				continue
			}
			w := p.TotalWager
			if w > c {
				w = c
			}
			if w > prev {
				layer.Amount += w - prev
			}
			if p.InHand() && p.TotalWager >= c {
				layer.Eligible = append(layer.Eligible, p.ID)
			}
		}
		if layer.Amount > 0 {
			if len(layer.Eligible) == 0 && len(pots) > 0 {
				pots[len(pots)-1].Amount += layer.Amount
			} else {
				pots = append(pots, layer)
			}
		}
		prev = c
	}
	return pots
}

// PotTotal sums all layers.
func PotTotal(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}
