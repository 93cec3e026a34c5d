// Package history retains finished-hand records in memory, bounded per
// user and per table so a long-lived process cannot grow without limit.
package history

import (
	"sync"
	"time"

	"github.com/cardroom/cardroom/poker"
)

// DefaultLimit bounds retained records per user and per table.
const DefaultLimit = 100

// Blinds is the stake structure the hand was played at.
type Blinds struct {
	Small int `json:"small"`
	Big   int `json:"big"`
	Ante  int `json:"ante,omitempty"`
}

// PlayerSnapshot captures one participant's stack across the hand.
type PlayerSnapshot struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	SeatIndex  int    `json:"seatIndex"`
	StartChips int    `json:"startChips"`
	EndChips   int    `json:"endChips"`
}

// ActionRecord is one accepted action.
type ActionRecord struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   int    `json:"amount,omitempty"`
}

// PhaseSnapshot groups the actions taken on one street.
type PhaseSnapshot struct {
	Phase   string         `json:"phase"`
	Actions []ActionRecord `json:"actions"`
}

// WinnerRecord is one payout line.
type WinnerRecord struct {
	PlayerID string       `json:"playerId"`
	Amount   int          `json:"amount"`
	HandType string       `json:"handType,omitempty"`
	Cards    []poker.Card `json:"cards,omitempty"`
}

// Record is the persisted form of one finished hand.
type Record struct {
	ID              string           `json:"id"`
	RoomID          string           `json:"roomId"`
	HandNumber      uint64           `json:"handNumber"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         time.Time        `json:"endTime"`
	Blinds          Blinds           `json:"blinds"`
	PlayerSnapshots []PlayerSnapshot `json:"playerSnapshots"`
	PhaseSnapshots  []PhaseSnapshot  `json:"phaseSnapshots"`
	CommunityCards  []poker.Card     `json:"communityCards,omitempty"`
	Winners         []WinnerRecord   `json:"winners"`
	FinalPot        int              `json:"finalPot"`
}

// Archive holds bounded hand histories, indexed by user and by table.
// Newest records come first in query results.
type Archive struct {
	limit int

	mu      sync.RWMutex
	byUser  map[string][]Record
	byTable map[string][]Record
}

// NewArchive builds an archive keeping at most limit records per key.
// A non-positive limit falls back to DefaultLimit.
func NewArchive(limit int) *Archive {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Archive{
		limit:   limit,
		byUser:  make(map[string][]Record),
		byTable: make(map[string][]Record),
	}
}

// Add files a finished hand under its table and every participant.
func (a *Archive) Add(rec Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byTable[rec.RoomID] = push(a.byTable[rec.RoomID], rec, a.limit)
	for _, ps := range rec.PlayerSnapshots {
		a.byUser[ps.PlayerID] = push(a.byUser[ps.PlayerID], rec, a.limit)
	}
}

// ForUser returns a user's retained hands, newest first.
func (a *Archive) ForUser(userID string) []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return reversed(a.byUser[userID])
}

// ForTable returns a table's retained hands, newest first.
func (a *Archive) ForTable(roomID string) []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return reversed(a.byTable[roomID])
}

// DropTable releases a destroyed table's records. Per-user copies
// survive.
func (a *Archive) DropTable(roomID string) {
	a.mu.Lock()
	delete(a.byTable, roomID)
	a.mu.Unlock()
}

func push(recs []Record, rec Record, limit int) []Record {
	recs = append(recs, rec)
	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}

func reversed(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec
	}
	return out
}
