package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestResumeWithinWindowRestoresSeat(t *testing.T) {
	clock := quartz.NewMock(t)
	l := NewLedger(clock, DefaultTTL, DefaultReapInterval, testLogger(), nil)

	l.Track("usr_1", "room_a", 3)
	clock.Advance(4 * time.Minute)

	s, ok := l.Resume("usr_1")
	require.True(t, ok)
	assert.Equal(t, "room_a", s.TableID)
	assert.Equal(t, 3, s.SeatIndex)

	// Resume consumes the session.
	_, ok = l.Resume("usr_1")
	assert.False(t, ok)
}

func TestResumeAfterWindowFails(t *testing.T) {
	clock := quartz.NewMock(t)
	l := NewLedger(clock, DefaultTTL, DefaultReapInterval, testLogger(), nil)

	l.Track("usr_1", "room_a", 3)
	clock.Advance(6 * time.Minute)

	_, ok := l.Resume("usr_1")
	assert.False(t, ok)
}

func TestReaperFiresExpiry(t *testing.T) {
	clock := quartz.NewMock(t)

	var mu sync.Mutex
	var expired []Session
	l := NewLedger(clock, time.Minute, 30*time.Second, testLogger(), func(s Session) {
		mu.Lock()
		expired = append(expired, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trap := clock.Trap().TickerFunc("session-reaper")
	defer trap.Close()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	trap.MustWait(ctx).MustRelease(ctx)

	l.Track("usr_1", "room_a", 0)
	l.Track("usr_2", "room_a", 1)

	// Two sweeps: first before expiry, then one after.
	clock.Advance(30 * time.Second).MustWait(ctx)
	mu.Lock()
	assert.Empty(t, expired)
	mu.Unlock()

	clock.Advance(30 * time.Second).MustWait(ctx)
	clock.Advance(30 * time.Second).MustWait(ctx)

	mu.Lock()
	assert.Len(t, expired, 2)
	mu.Unlock()
	assert.Equal(t, 0, l.Len())

	cancel()
	require.NoError(t, <-done)
}

func TestForgetIsSilent(t *testing.T) {
	clock := quartz.NewMock(t)
	fired := false
	l := NewLedger(clock, time.Minute, 30*time.Second, testLogger(), func(Session) { fired = true })

	l.Track("usr_1", "room_a", 0)
	l.Forget("usr_1")
	assert.Equal(t, 0, l.Len())

	_, ok := l.Resume("usr_1")
	assert.False(t, ok)
	assert.False(t, fired)
}

func TestTrackReplacesAndRestartsWindow(t *testing.T) {
	clock := quartz.NewMock(t)
	l := NewLedger(clock, time.Minute, 30*time.Second, testLogger(), nil)

	l.Track("usr_1", "room_a", 0)
	clock.Advance(45 * time.Second)
	l.Track("usr_1", "room_b", 5)
	clock.Advance(45 * time.Second)

	s, ok := l.Resume("usr_1")
	require.True(t, ok, "window restarted by second Track")
	assert.Equal(t, "room_b", s.TableID)
	assert.Equal(t, 5, s.SeatIndex)
}
