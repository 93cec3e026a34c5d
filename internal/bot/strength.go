package bot

import "github.com/cardroom/cardroom/poker"

// HandStrength maps the bot's cards to [0,1]. Preflop it reads the
// 169-class percentile chart; postflop it evaluates the made hand and
// maps the category to a base strength with a small kicker bonus.
func HandStrength(hole, community []poker.Card) float64 {
	if len(community) < 3 {
		return poker.PreflopPercentile(hole)
	}
	rank := poker.EvaluateBest(hole, community)

	var base float64
	switch rank.Category {
	case poker.RoyalFlush, poker.StraightFlush:
		base = 0.98
	case poker.FourOfAKind:
		base = 0.96
	case poker.FullHouse:
		base = 0.92
	case poker.Flush:
		base = 0.85
	case poker.Straight:
		base = 0.80
	case poker.ThreeOfAKind:
		base = 0.70
	case poker.TwoPair:
		base = 0.58
	case poker.OnePair:
		base = 0.38
	default:
		base = 0.15
	}

	if len(rank.Kickers) > 0 {
		// Up to +0.02 for topping the category with an ace.
		base += 0.02 * float64(rank.Kickers[0]-poker.Two) / float64(poker.Ace-poker.Two)
	}
	if base > 0.98 {
		base = 0.98
	}
	return base
}
