package table

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/bot"
	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/internal/history"
	"github.com/cardroom/cardroom/internal/protocol"
)

// captureBC records everything a table broadcasts.
type captureBC struct {
	mu   sync.Mutex
	room []protocol.Envelope
	user map[string][]protocol.Envelope
}

func newCaptureBC() *captureBC {
	return &captureBC{user: make(map[string][]protocol.Envelope)}
}

func (b *captureBC) ToRoom(_ string, env protocol.Envelope) {
	b.mu.Lock()
	b.room = append(b.room, env)
	b.mu.Unlock()
}

func (b *captureBC) ToUser(userID string, env protocol.Envelope) bool {
	b.mu.Lock()
	b.user[userID] = append(b.user[userID], env)
	b.mu.Unlock()
	return true
}

func (b *captureBC) roomTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.room))
	for i, env := range b.room {
		types[i] = env.Type
	}
	return types
}

func (b *captureBC) userTypes(userID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []string
	for _, env := range b.user[userID] {
		types = append(types, env.Type)
	}
	return types
}

func testTable(t *testing.T, clock quartz.Clock, bc Broadcaster, sink HistorySink) *Table {
	t.Helper()
	return New(Config{
		ID:         "room_test",
		SmallBlind: 10,
		BigBlind:   20,
		MaxSeats:   6,
		MinBuyIn:   100,
		MaxBuyIn:   2000,
	}, Options{
		Clock:       clock,
		Logger:      log.New(io.Discard),
		Broadcaster: bc,
		History:     sink,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		Rand:        rand.New(rand.NewSource(7)),
	})
}

func advance(ctx context.Context, clock *quartz.Mock, d time.Duration) {
	clock.Advance(d).MustWait(ctx)
}

func TestSeatAssignmentLowestFreeIndex(t *testing.T) {
	tbl := testTable(t, quartz.NewMock(t), newCaptureBC(), nil)

	s1, err := tbl.AddPlayer("usr_1", "a", 500)
	require.NoError(t, err)
	s2, err := tbl.AddPlayer("usr_2", "b", 500)
	require.NoError(t, err)
	s3, err := tbl.AddPlayer("usr_3", "c", 500)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{s1, s2, s3})

	_, err = tbl.RemovePlayer("usr_2")
	require.NoError(t, err)

	s4, err := tbl.AddPlayer("usr_4", "d", 500)
	require.NoError(t, err)
	assert.Equal(t, 1, s4)
}

func TestSeatRejections(t *testing.T) {
	tbl := testTable(t, quartz.NewMock(t), newCaptureBC(), nil)

	_, err := tbl.AddPlayer("usr_1", "a", 50)
	assert.ErrorIs(t, err, ErrBuyInOutOfRange)
	_, err = tbl.AddPlayer("usr_1", "a", 5000)
	assert.ErrorIs(t, err, ErrBuyInOutOfRange)

	_, err = tbl.AddPlayer("usr_1", "a", 500)
	require.NoError(t, err)
	_, err = tbl.AddPlayer("usr_1", "a", 500)
	assert.ErrorIs(t, err, ErrAlreadySeated)

	for i := 2; i <= 6; i++ {
		_, err = tbl.AddPlayer(string(rune('0'+i)), "p", 500)
		require.NoError(t, err)
	}
	_, err = tbl.AddPlayer("usr_9", "late", 500)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestAutoStartAfterCooldown(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	bc := newCaptureBC()
	tbl := testTable(t, clock, bc, nil)

	_, err := tbl.AddPlayer("usr_1", "a", 500)
	require.NoError(t, err)
	assert.Equal(t, engine.Waiting.String(), tbl.PublicState().Phase)

	_, err = tbl.AddPlayer("usr_2", "b", 500)
	require.NoError(t, err)

	advance(ctx, clock, DefaultAutoStartDelay)

	gs := tbl.PublicState()
	assert.Equal(t, engine.Preflop.String(), gs.Phase)
	assert.Equal(t, uint64(1), gs.HandNumber)
	assert.Contains(t, bc.roomTypes(), protocol.TypeGameState)

	// Both humans got exactly their own hole cards.
	assert.Contains(t, bc.userTypes("usr_1"), protocol.TypeDealCards)
	assert.Contains(t, bc.userTypes("usr_2"), protocol.TypeDealCards)
}

func TestHoleCardsRedactedFromPublicState(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	for _, seat := range tbl.PublicState().Seats {
		assert.Empty(t, seat.HoleCards, "public snapshot must not leak hole cards")
	}

	private := tbl.PrivateStateFor("usr_1")
	for _, seat := range private.Seats {
		if seat.PlayerID == "usr_1" {
			assert.Len(t, seat.HoleCards, 2)
		} else {
			assert.Empty(t, seat.HoleCards)
		}
	}
}

func TestActionTimeoutFoldsFacingBet(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	bc := newCaptureBC()
	tbl := testTable(t, clock, bc, nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	// Heads-up preflop the dealer/small blind acts first and faces the
	// big blind; the expired deadline folds them.
	gs := tbl.PublicState()
	require.Equal(t, engine.Preflop.String(), gs.Phase)
	actor := gs.ActorSeat
	require.GreaterOrEqual(t, actor, 0)

	advance(ctx, clock, DefaultActionTimeout)

	assert.Equal(t, engine.Finished.String(), tbl.PublicState().Phase)
	assert.Contains(t, bc.roomTypes(), protocol.TypeHandResult)
}

func TestHandleActionPlaysAHand(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	gs := tbl.PublicState()
	actorID := gs.Seats[gs.ActorSeat].PlayerID

	assert.ErrorIs(t, tbl.HandleAction("usr_0", engine.Fold, 0), ErrNotSeated)

	otherID := "usr_1"
	if actorID == "usr_1" {
		otherID = "usr_2"
	}
	assert.ErrorIs(t, tbl.HandleAction(otherID, engine.Fold, 0), engine.ErrNotYourTurn)

	require.NoError(t, tbl.HandleAction(actorID, engine.Fold, 0))
	assert.Equal(t, engine.Finished.String(), tbl.PublicState().Phase)
}

func TestChipsConservedAcrossHand(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 700)
	advance(ctx, clock, DefaultAutoStartDelay)

	// Heads-up the small blind faces a bet; the expired deadline folds
	// them and ends the hand.
	advance(ctx, clock, DefaultActionTimeout)
	require.Equal(t, engine.Finished.String(), tbl.PublicState().Phase)

	total := 0
	for _, seat := range tbl.PublicState().Seats {
		total += seat.Chips
	}
	assert.Equal(t, 1200, total)
}

func TestRemoveMidHandFoldsAndFreesSeatAfterHand(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	_, _ = tbl.AddPlayer("usr_3", "c", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	gs := tbl.PublicState()
	require.Equal(t, engine.Preflop.String(), gs.Phase)

	// Remove someone who is not the current actor.
	victim := ""
	for _, seat := range gs.Seats {
		if seat.SeatIndex != gs.ActorSeat {
			victim = seat.PlayerID
			break
		}
	}
	chips, err := tbl.RemovePlayer(victim)
	require.NoError(t, err)
	assert.Positive(t, chips)

	// Seat stays occupied until the hand concludes.
	assert.True(t, tbl.Seated(victim))

	for i := 0; i < 4 && tbl.PublicState().Phase != engine.Finished.String(); i++ {
		advance(ctx, clock, DefaultActionTimeout)
	}
	require.Equal(t, engine.Finished.String(), tbl.PublicState().Phase)
	assert.False(t, tbl.Seated(victim))
}

func TestBuyInRules(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)

	assert.ErrorIs(t, tbl.BuyIn("usr_9", 100), ErrNotSeated)
	assert.ErrorIs(t, tbl.BuyIn("usr_1", 0), ErrBuyInOutOfRange)
	assert.ErrorIs(t, tbl.BuyIn("usr_1", 1600), ErrBuyInOutOfRange)
	require.NoError(t, tbl.BuyIn("usr_1", 300))

	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)
	require.Equal(t, engine.Preflop.String(), tbl.PublicState().Phase)

	assert.ErrorIs(t, tbl.BuyIn("usr_1", 100), ErrBuyInDuringHand)
}

func TestSitOutSkipsNextHand(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	_, _ = tbl.AddPlayer("usr_3", "c", 500)
	require.NoError(t, tbl.SitOut("usr_3"))
	advance(ctx, clock, DefaultAutoStartDelay)

	gs := tbl.PublicState()
	require.Equal(t, engine.Preflop.String(), gs.Phase)
	for _, seat := range gs.Seats {
		if seat.PlayerID == "usr_3" {
			assert.Equal(t, engine.StateSittingOut.String(), seat.State)
			assert.Zero(t, seat.TotalWager)
		}
	}
}

func TestBotsPlayHandsToCompletion(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	sink := history.NewArchive(10)
	tbl := testTable(t, clock, newCaptureBC(), sink)

	_, err := tbl.AddBot("bot_1", "Ada", 500, bot.Medium)
	require.NoError(t, err)
	_, err = tbl.AddBot("bot_2", "Ben", 500, bot.Hard)
	require.NoError(t, err)

	// Bot delays are at most 1.5s; stepping 2s at a time fires every
	// pending bot move, deadline and auto-start along the way.
	for i := 0; i < 400; i++ {
		advance(ctx, clock, 2*time.Second)
		if testutil.ToFloat64(tbl.met.HandsCompleted) >= 2 {
			break
		}
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(tbl.met.HandsCompleted), float64(2))

	total := 0
	for _, seat := range tbl.PublicState().Seats {
		total += seat.Chips
	}
	assert.Equal(t, 1000, total)

	recs := sink.ForTable("room_test")
	require.NotEmpty(t, recs)
	rec := recs[0]
	assert.Equal(t, "room_test", rec.RoomID)
	assert.NotEmpty(t, rec.PhaseSnapshots)
	assert.NotEmpty(t, rec.Winners)
	assert.Positive(t, rec.FinalPot)
}

// reentrantSink queries the table from inside Add. That only works
// when finished-hand records are handed over with the table unlocked;
// sinks write to the archive and the store and may block.
type reentrantSink struct {
	tbl  *Table
	mu   sync.Mutex
	recs []history.Record
}

func (s *reentrantSink) Add(rec history.Record) {
	s.tbl.SeatedCount()
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
}

func (s *reentrantSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func TestHistorySinkMayCallBackIntoTable(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	sink := &reentrantSink{}
	tbl := testTable(t, clock, newCaptureBC(), sink)
	sink.tbl = tbl

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	// Deadline folds the small blind, ending the hand and filing its
	// record through the sink.
	advance(ctx, clock, DefaultActionTimeout)
	require.Equal(t, engine.Finished.String(), tbl.PublicState().Phase)
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "room_test", sink.recs[0].RoomID)

	// Leaving mid-hand files through the same path.
	advance(ctx, clock, DefaultAutoStartDelay)
	require.Equal(t, engine.Preflop.String(), tbl.PublicState().Phase)
	_, err := tbl.RemovePlayer("usr_1")
	require.NoError(t, err)
	assert.Equal(t, 2, sink.count())
}

func TestTerminateStopsPlayAndNotifiesRoom(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	bc := newCaptureBC()
	tbl := testTable(t, clock, bc, nil)

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddPlayer("usr_2", "b", 500)
	advance(ctx, clock, DefaultAutoStartDelay)

	tbl.Terminate("draining")
	assert.True(t, tbl.Terminated())
	assert.Contains(t, bc.roomTypes(), protocol.TypeError)

	_, err := tbl.AddPlayer("usr_3", "c", 500)
	assert.ErrorIs(t, err, ErrTableTerminated)
	assert.ErrorIs(t, tbl.HandleAction("usr_1", engine.Fold, 0), ErrTableTerminated)
}

func TestStacksReportsHumansOnly(t *testing.T) {
	tbl := testTable(t, quartz.NewMock(t), newCaptureBC(), nil)
	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, _ = tbl.AddBot("bot_1", "Ada", 500, bot.Easy)

	stacks := tbl.Stacks()
	assert.Equal(t, map[string]int{"usr_1": 500}, stacks)
}

func TestEmptySinceTracksOccupancy(t *testing.T) {
	clock := quartz.NewMock(t)
	tbl := testTable(t, clock, newCaptureBC(), nil)

	_, ok := tbl.EmptySince()
	assert.True(t, ok, "fresh table is empty")

	_, _ = tbl.AddPlayer("usr_1", "a", 500)
	_, ok = tbl.EmptySince()
	assert.False(t, ok)

	clock.Advance(time.Minute)
	_, _ = tbl.RemovePlayer("usr_1")
	since, ok := tbl.EmptySince()
	require.True(t, ok)
	assert.Equal(t, clock.Now(), since)
}
