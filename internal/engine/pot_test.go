package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func potPlayer(id string, seat, wager int, state PlayerState) *Player {
	return &Player{ID: id, Seat: seat, TotalWager: wager, State: state}
}

func TestBuildPotsThreeWayAllIn(t *testing.T) {
	// Stacks 100/200/300 all-in for the full hand: layers of 300, 200
	// and 100 with shrinking eligibility.
	players := []*Player{
		potPlayer("p1", 0, 100, StateAllIn),
		potPlayer("p2", 1, 200, StateAllIn),
		potPlayer("p3", 2, 300, StateAllIn),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 3)

	assert.Equal(t, 300, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, pots[0].Eligible)
	assert.False(t, pots[0].Side)

	assert.Equal(t, 200, pots[1].Amount)
	assert.ElementsMatch(t, []string{"p2", "p3"}, pots[1].Eligible)
	assert.True(t, pots[1].Side)

	assert.Equal(t, 100, pots[2].Amount)
	assert.ElementsMatch(t, []string{"p3"}, pots[2].Eligible)

	assert.Equal(t, 600, PotTotal(pots))
}

func TestBuildPotsSingleLayer(t *testing.T) {
	players := []*Player{
		potPlayer("p1", 0, 50, StateActive),
		potPlayer("p2", 1, 50, StateActive),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, 100, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2"}, pots[0].Eligible)
}

func TestBuildPotsFoldedChipsStayInButIneligible(t *testing.T) {
	players := []*Player{
		potPlayer("p1", 0, 60, StateActive),
		potPlayer("p2", 1, 60, StateActive),
		potPlayer("p3", 2, 20, StateFolded),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, 140, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2"}, pots[0].Eligible)
}

func TestBuildPotsAllInPlusFold(t *testing.T) {
	// p1 all-in 40, p2 covers with 100, p3 folded 100 in. The layer
	// above p1's cap belongs to p2 alone (their overbet comes back as
	// a single-eligible pot).
	players := []*Player{
		potPlayer("p1", 0, 40, StateAllIn),
		potPlayer("p2", 1, 100, StateActive),
		potPlayer("p3", 2, 100, StateFolded),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 2)
	assert.Equal(t, 120, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2"}, pots[0].Eligible)
	assert.Equal(t, 120, pots[1].Amount)
	assert.ElementsMatch(t, []string{"p2"}, pots[1].Eligible)
	assert.Equal(t, 240, PotTotal(pots))
}

func TestBuildPotsTopLayerOnlyFoldersForfeited(t *testing.T) {
	// p1 folded after wagering more than either survivor could match.
	// The slice above p2's cap has no one left to claim it, so it falls
	// into the layer beneath instead of forming a pot nobody can win.
	players := []*Player{
		potPlayer("p1", 0, 100, StateFolded),
		potPlayer("p2", 1, 80, StateAllIn),
		potPlayer("p3", 2, 60, StateAllIn),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 2)

	assert.Equal(t, 180, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p2", "p3"}, pots[0].Eligible)

	assert.Equal(t, 60, pots[1].Amount, "p1's 20 above the 80 cap joins the p2 layer")
	assert.ElementsMatch(t, []string{"p2"}, pots[1].Eligible)

	for _, pot := range pots {
		assert.NotEmpty(t, pot.Eligible, "every pot must have a claimant")
	}
	assert.Equal(t, 240, PotTotal(pots))
}

func TestBuildPotsSkipsNilSeats(t *testing.T) {
	players := []*Player{
		nil,
		potPlayer("p1", 1, 30, StateActive),
		nil,
		potPlayer("p2", 3, 30, StateActive),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, 60, pots[0].Amount)
}

func TestBuildPotsEqualAllIns(t *testing.T) {
	players := []*Player{
		potPlayer("p1", 0, 80, StateAllIn),
		potPlayer("p2", 1, 80, StateAllIn),
		potPlayer("p3", 2, 80, StateActive),
	}
	pots := BuildPots(players)
	require.Len(t, pots, 1)
	assert.Equal(t, 240, pots[0].Amount)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, pots[0].Eligible)
}
