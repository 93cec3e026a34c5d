package poker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit of a playing card. The numeric order fixes the card index
// bijection, so it must never change.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// String returns the lowercase suit letter used in the wire format.
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "h"
	case Diamonds:
		return "d"
	case Clubs:
		return "c"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// Rank of a playing card, Two (2) through Ace (14).
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankChars = "23456789TJQKA"

// String returns the single-character rank ("2".."9", "T", "J", "Q",
// "K", "A").
func (r Rank) String() string {
	if r < Two || r > Ace {
		return "?"
	}
	return string(rankChars[r-Two])
}

// Card is one of the 52 playing cards.
type Card struct {
	Suit Suit `json:"-"`
	Rank Rank `json:"-"`
}

// NewCard builds a card from suit and rank.
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// Index maps the card onto [0, 52) with suits in H, D, C, S order and
// ranks ascending within each suit. CardFromIndex is its inverse.
func (c Card) Index() int {
	return int(c.Suit)*13 + int(c.Rank) - 2
}

// CardFromIndex is the inverse of Index. It panics outside [0, 52).
func CardFromIndex(i int) Card {
	if i < 0 || i >= 52 {
		panic(fmt.Sprintf("poker: card index %d out of range", i))
	}
	return Card{Suit: Suit(i / 13), Rank: Rank(i%13 + 2)}
}

// String renders the card in the two-character wire form, e.g. "As",
// "Td", "2c".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// ParseCard parses the two-character form produced by String. The rank
// character is case-sensitive upper, the suit letter accepts either
// case.
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("poker: invalid card %q", s)
	}
	ri := strings.IndexByte(rankChars, s[0])
	if ri < 0 {
		return Card{}, fmt.Errorf("poker: invalid rank in card %q", s)
	}
	var suit Suit
	switch s[1] | 0x20 { // lowercase
	case 'h':
		suit = Hearts
	case 'd':
		suit = Diamonds
	case 'c':
		suit = Clubs
	case 's':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("poker: invalid suit in card %q", s)
	}
	return Card{Suit: suit, Rank: Rank(ri + 2)}, nil
}

// MustParseCard is ParseCard for literals in tests and fixtures.
func MustParseCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCards parses a space-separated list of cards, e.g. "As Kd Qh".
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MarshalJSON encodes the card as its string form.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes the string form.
func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCard(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
