package poker

import (
	"fmt"
	"sort"
	"strings"
)

// Category classifies a five-card poker hand.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandRank is the strength of the best five-card hand. Two ranks
// compare first by Category, then lexicographically by Kickers.
// Kickers are ordered most-significant first: for a full house the
// trips rank then the pair rank; for two pair the high pair, low pair,
// then the odd card; for a straight only the top rank (5 for the
// wheel).
type HandRank struct {
	Category Category
	Kickers  []Rank
	BestFive []Card
}

// Compare returns 1 if h beats other, -1 if other beats h, 0 on a tie.
// BestFive does not participate: hands with equal category and kickers
// tie regardless of suits.
func (h HandRank) Compare(other HandRank) int {
	if h.Category != other.Category {
		if h.Category > other.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(h.Kickers) && i < len(other.Kickers); i++ {
		if h.Kickers[i] != other.Kickers[i] {
			if h.Kickers[i] > other.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

func (h HandRank) String() string {
	cards := make([]string, len(h.BestFive))
	for i, c := range h.BestFive {
		cards[i] = c.String()
	}
	return fmt.Sprintf("%s (%s)", h.Category, strings.Join(cards, " "))
}

// Evaluate finds the best five-card hand from two hole cards plus the
// community cards. It accepts 5 to 7 distinct cards in total and errors
// otherwise.
func Evaluate(hole, community []Card) (HandRank, error) {
	all := make([]Card, 0, len(hole)+len(community))
	all = append(all, hole...)
	all = append(all, community...)
	if len(all) < 5 || len(all) > 7 {
		return HandRank{}, fmt.Errorf("poker: evaluate needs 5-7 cards, got %d", len(all))
	}
	var seen [52]bool
	for _, c := range all {
		i := c.Index()
		if seen[i] {
			return HandRank{}, fmt.Errorf("poker: duplicate card %s", c)
		}
		seen[i] = true
	}
	best := rankFive(all[:5:5])
	// Enumerate every 5-card subset. With at most 7 cards this is at
	// most 21 combinations, cheap enough that no precomputed tables
	// are needed.
	var five [5]Card
	var walk func(start, picked int)
	walk = func(start, picked int) {
		if picked == 5 {
			r := rankFive(five[:])
			if r.Compare(best) > 0 {
				best = r
			}
			return
		}
		for i := start; i <= len(all)-(5-picked); i++ {
			five[picked] = all[i]
			walk(i+1, picked+1)
		}
	}
	walk(0, 0)
	return best, nil
}

// EvaluateBest is Evaluate for callers that guarantee valid input, such
// as the engine dealing from its own deck.
func EvaluateBest(hole, community []Card) HandRank {
	r, err := Evaluate(hole, community)
	if err != nil {
		panic(err)
	}
	return r
}

// rankFive classifies exactly five distinct cards.
func rankFive(cards []Card) HandRank {
	five := make([]Card, 5)
	copy(five, cards)
	sort.Slice(five, func(i, j int) bool { return five[i].Rank > five[j].Rank })

	flush := true
	for i := 1; i < 5; i++ {
		if five[i].Suit != five[0].Suit {
			flush = false
			break
		}
	}

	straightTop := straightTopRank(five)

	if flush && straightTop != 0 {
		cat := StraightFlush
		if straightTop == Ace {
			cat = RoyalFlush
		}
		return HandRank{Category: cat, Kickers: []Rank{straightTop}, BestFive: five}
	}

	// Group ranks by multiplicity, groups of equal size ordered by
	// rank descending.
	type group struct {
		rank  Rank
		count int
	}
	var groups []group
	for i := 0; i < 5; {
		j := i
		for j < 5 && five[j].Rank == five[i].Rank {
			j++
		}
		groups = append(groups, group{rank: five[i].Rank, count: j - i})
		i = j
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })

	kickers := make([]Rank, len(groups))
	for i, g := range groups {
		kickers[i] = g.rank
	}

	switch {
	case groups[0].count == 4:
		return HandRank{Category: FourOfAKind, Kickers: kickers, BestFive: five}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandRank{Category: FullHouse, Kickers: kickers, BestFive: five}
	case flush:
		return HandRank{Category: Flush, Kickers: kickers, BestFive: five}
	case straightTop != 0:
		return HandRank{Category: Straight, Kickers: []Rank{straightTop}, BestFive: five}
	case groups[0].count == 3:
		return HandRank{Category: ThreeOfAKind, Kickers: kickers, BestFive: five}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandRank{Category: TwoPair, Kickers: kickers, BestFive: five}
	case groups[0].count == 2:
		return HandRank{Category: OnePair, Kickers: kickers, BestFive: five}
	default:
		return HandRank{Category: HighCard, Kickers: kickers, BestFive: five}
	}
}

// straightTopRank returns the top rank of a straight formed by the five
// cards (sorted rank-descending), or 0 if they do not form one. The
// wheel A-2-3-4-5 reports Five as its top.
func straightTopRank(sorted []Card) Rank {
	run := true
	for i := 1; i < 5; i++ {
		if sorted[i-1].Rank != sorted[i].Rank+1 {
			run = false
			break
		}
	}
	if run {
		return sorted[0].Rank
	}
	// Wheel: A 5 4 3 2 in descending order.
	if sorted[0].Rank == Ace && sorted[1].Rank == Five && sorted[2].Rank == Four &&
		sorted[3].Rank == Three && sorted[4].Rank == Two {
		return Five
	}
	return 0
}
