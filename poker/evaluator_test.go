package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCards(t *testing.T, s string) []Card {
	t.Helper()
	cards, err := ParseCards(s)
	require.NoError(t, err)
	return cards
}

func evalCategory(t *testing.T, hole, community string) HandRank {
	t.Helper()
	r, err := Evaluate(mustCards(t, hole), mustCards(t, community))
	require.NoError(t, err)
	return r
}

func TestEvaluateCategories(t *testing.T) {
	tests := []struct {
		name      string
		hole      string
		community string
		want      Category
		kickers   []Rank
	}{
		{"royal flush", "As Ks", "Qs Js Ts 2d 3c", RoyalFlush, []Rank{Ace}},
		{"straight flush", "9h 8h", "7h 6h 5h Ad Ac", StraightFlush, []Rank{Nine}},
		{"steel wheel", "Ah 2h", "3h 4h 5h Kc Qd", StraightFlush, []Rank{Five}},
		{"four of a kind", "As Ad", "Ah Ac Kd 2c 3s", FourOfAKind, []Rank{Ace, King}},
		{"full house", "Ks Kd", "Kh 2c 2d 7s 9h", FullHouse, []Rank{King, Two}},
		{"flush", "As 9s", "Ks 4s 2s Qd Jd", Flush, []Rank{Ace, King, Nine, Four, Two}},
		{"straight", "9c 8d", "7h 6s 5d Kc Kd", Straight, []Rank{Nine}},
		{"wheel straight", "Ac 2d", "3h 4s 5c Kd Qh", Straight, []Rank{Five}},
		{"three of a kind", "7s 7d", "7h Ac Kd 2s 4h", ThreeOfAKind, []Rank{Seven, Ace, King}},
		{"two pair", "As Ad", "Ks Kd 7c 2h 3d", TwoPair, []Rank{Ace, King, Seven}},
		{"one pair", "Js Jd", "Ac 8d 5h 3c 2s", OnePair, []Rank{Jack, Ace, Eight, Five}},
		{"high card", "As Jd", "9c 7h 5s 3d 2c", HighCard, []Rank{Ace, Jack, Nine, Seven, Five}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := evalCategory(t, tt.hole, tt.community)
			assert.Equal(t, tt.want, r.Category)
			assert.Equal(t, tt.kickers, r.Kickers)
			assert.Len(t, r.BestFive, 5)
		})
	}
}

func TestEvaluatePicksBestSubset(t *testing.T) {
	// Board plays a straight, but hole cards upgrade to a flush.
	r := evalCategory(t, "Ah Kh", "Qh Jh Th 9c 8d")
	assert.Equal(t, RoyalFlush, r.Category)

	// Trips on board, pocket pair makes a full house.
	r = evalCategory(t, "2s 2d", "9h 9c 9d Ac Kd")
	assert.Equal(t, FullHouse, r.Category)
	assert.Equal(t, []Rank{Nine, Two}, r.Kickers)
}

func TestEvaluateInputValidation(t *testing.T) {
	_, err := Evaluate(mustCards(t, "As Ks"), mustCards(t, "Qs Js"))
	assert.Error(t, err, "4 cards")

	_, err = Evaluate(mustCards(t, "As Ks"), mustCards(t, "Qs Js Ts 9s 8s 7s"))
	assert.Error(t, err, "8 cards")

	_, err = Evaluate(mustCards(t, "As As"), mustCards(t, "Qs Js Ts"))
	assert.Error(t, err, "duplicate card")
}

func TestEvaluateAcceptsFiveToSeven(t *testing.T) {
	for _, community := range []string{"Qs Jd Th", "Qs Jd Th 9c", "Qs Jd Th 9c 8d"} {
		r, err := Evaluate(mustCards(t, "As Kd"), mustCards(t, community))
		require.NoError(t, err)
		assert.NotEmpty(t, r.BestFive)
	}
}

func TestCompareOrdering(t *testing.T) {
	flush := evalCategory(t, "As 9s", "Ks 4s 2s Qd Jd")
	straight := evalCategory(t, "9c 8d", "7h 6s 5d Kc Kd")
	assert.Equal(t, 1, flush.Compare(straight))
	assert.Equal(t, -1, straight.Compare(flush))
}

func TestCompareKickersBreakTies(t *testing.T) {
	high := evalCategory(t, "As Ad", "Ks 7c 5d 3h 2s")
	low := evalCategory(t, "Ah Ac", "Qs 7d 5h 3c 2d")
	assert.Equal(t, 1, high.Compare(low), "AA-K kicker beats AA-Q kicker")
}

func TestCompareIgnoresSuits(t *testing.T) {
	a := evalCategory(t, "As Ks", "Qd Jh 9c 4d 2s")
	b := evalCategory(t, "Ad Kc", "Qh Js 9d 4c 2h")
	assert.Equal(t, 0, a.Compare(b))
}

func TestWheelLosesToSixHighStraight(t *testing.T) {
	wheel := evalCategory(t, "Ac 2d", "3h 4s 5c Kd Qh")
	sixHigh := evalCategory(t, "6c 2d", "3h 4s 5c Kd Qh")
	assert.Equal(t, 1, sixHigh.Compare(wheel))
}

func TestPreflopPercentile(t *testing.T) {
	assert.Equal(t, 1.0, PreflopPercentile(mustCards(t, "As Ad")))
	assert.Equal(t, 0.0, PreflopPercentile(mustCards(t, "7s 2d")))
	assert.Equal(t, 0.982, PreflopPercentile(mustCards(t, "As Ks")))
	assert.Equal(t, 0.940, PreflopPercentile(mustCards(t, "Ad Kc")))
	// Order of hole cards is irrelevant.
	assert.Equal(t,
		PreflopPercentile(mustCards(t, "Ks As")),
		PreflopPercentile(mustCards(t, "As Ks")))
}

func TestStartingHandKey(t *testing.T) {
	assert.Equal(t, "AA", StartingHandKey(mustCards(t, "As Ad")))
	assert.Equal(t, "AKs", StartingHandKey(mustCards(t, "Ks As")))
	assert.Equal(t, "72o", StartingHandKey(mustCards(t, "2d 7s")))
}
