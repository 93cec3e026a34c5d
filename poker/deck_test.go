package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckDealAll52Distinct(t *testing.T) {
	d := NewSeededDeck(1)
	d.Shuffle()
	seen := make(map[Card]bool)
	for i := 0; i < 52; i++ {
		c := d.Deal()
		require.False(t, seen[c], "card %s dealt twice", c)
		seen[c] = true
	}
	assert.Equal(t, 0, d.Remaining())
	assert.Panics(t, func() { d.Deal() })
	assert.Panics(t, func() { d.Burn() })
}

func TestDeckSameSeedSameOrder(t *testing.T) {
	a := NewSeededDeck(42)
	b := NewSeededDeck(42)
	a.Shuffle()
	b.Shuffle()
	for i := 0; i < 52; i++ {
		require.Equal(t, a.Deal(), b.Deal())
	}
}

func TestDeckDifferentSeedsDiffer(t *testing.T) {
	a := NewSeededDeck(1)
	b := NewSeededDeck(2)
	a.Shuffle()
	b.Shuffle()
	same := true
	for i := 0; i < 52; i++ {
		if a.Deal() != b.Deal() {
			same = false
		}
	}
	assert.False(t, same)
}

func TestDeckResetRestoresCanonicalOrder(t *testing.T) {
	d := NewSeededDeck(7)
	d.Shuffle()
	d.DealN(10)
	d.Reset()
	assert.Equal(t, 52, d.Remaining())
	for i := 0; i < 52; i++ {
		assert.Equal(t, CardFromIndex(i), d.Deal())
	}
}

func TestDeckBurnSkipsCard(t *testing.T) {
	a := NewSeededDeck(9)
	b := NewSeededDeck(9)
	a.Shuffle()
	b.Shuffle()
	b.Deal()
	a.Burn()
	assert.Equal(t, b.Deal(), a.Deal())
	assert.Equal(t, a.Remaining(), b.Remaining())
}

func TestDeckDealN(t *testing.T) {
	d := NewSeededDeck(3)
	d.Shuffle()
	cards := d.DealN(5)
	require.Len(t, cards, 5)
	assert.Equal(t, 47, d.Remaining())
}
