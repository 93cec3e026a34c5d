package poker

import (
	"math/rand"
)

// Deck is an ordered 52-card deck with a deal cursor. All randomness
// flows through the injected *rand.Rand so hands are reproducible under
// a fixed seed.
type Deck struct {
	cards   [52]Card
	next    int
	rng     *rand.Rand
	stacked bool
}

// NewDeck creates a deck in canonical order (cursor at 0) with an
// explicit RNG. Pass rand.New(rand.NewSource(seed)) for determinism.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	d.Reset()
	return d
}

// NewSeededDeck is a convenience constructor for tests.
func NewSeededDeck(seed int64) *Deck {
	return NewDeck(rand.New(rand.NewSource(seed)))
}

// NewStackedDeck returns a deck that deals the given cards first, with
// the rest of the pack following in canonical order, and ignores
// Shuffle. Tests use it to script exact deals.
func NewStackedDeck(cards ...Card) *Deck {
	d := &Deck{stacked: true}
	d.Reset()
	used := make(map[Card]bool, len(cards))
	for _, c := range cards {
		if used[c] {
			panic("poker: duplicate card in stacked deck: " + c.String())
		}
		used[c] = true
	}
	copy(d.cards[:], cards)
	i := len(cards)
	for j := 0; j < 52; j++ {
		if c := CardFromIndex(j); !used[c] {
			d.cards[i] = c
			i++
		}
	}
	return d
}

// Reset restores canonical order and rewinds the cursor.
func (d *Deck) Reset() {
	for i := range d.cards {
		d.cards[i] = CardFromIndex(i)
	}
	d.next = 0
}

// Shuffle runs Fisher-Yates over the undealt suffix and rewinds the
// cursor. Every position is visited, so every permutation of a fresh
// deck is reachable.
func (d *Deck) Shuffle() {
	if d.stacked {
		return
	}
	for i := len(d.cards) - 1; i > d.next; i-- {
		j := d.next + d.rng.Intn(i-d.next+1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.next = 0
}

// Deal returns the next card and advances the cursor. Dealing past the
// end of the deck is a programming error in the engine and panics.
func (d *Deck) Deal() Card {
	if d.next >= len(d.cards) {
		panic("poker: deal from exhausted deck")
	}
	c := d.cards[d.next]
	d.next++
	return c
}

// DealN deals n cards.
func (d *Deck) DealN(n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = d.Deal()
	}
	return cards
}

// Burn advances the cursor without exposing a card.
func (d *Deck) Burn() {
	if d.next >= len(d.cards) {
		panic("poker: burn from exhausted deck")
	}
	d.next++
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
