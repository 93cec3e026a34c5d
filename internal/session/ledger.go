// Package session keeps time-boxed reconnection state: when a seated
// client drops, its seat binding survives for a grace window so a
// re-authenticated connection can re-attach instead of losing the
// seat.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Defaults per the platform configuration.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultReapInterval = 30 * time.Second
)

// Session binds a disconnected user to their seat.
type Session struct {
	UserID       string
	TableID      string
	SeatIndex    int
	DisconnectAt time.Time
	ExpiresAt    time.Time
}

// ExpireFunc is invoked (outside the ledger lock) for every session
// the reaper sweeps; the table controller uses it to fold and remove
// the abandoned seat.
type ExpireFunc func(s Session)

// Ledger is the shared, serialized session table.
type Ledger struct {
	clock    quartz.Clock
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
	onExpire ExpireFunc

	mu       sync.Mutex
	sessions map[string]Session
}

// NewLedger builds a ledger. onExpire may be nil.
func NewLedger(clock quartz.Clock, ttl, reapInterval time.Duration, logger *log.Logger, onExpire ExpireFunc) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if reapInterval <= 0 {
		reapInterval = DefaultReapInterval
	}
	return &Ledger{
		clock:    clock,
		ttl:      ttl,
		interval: reapInterval,
		logger:   logger.WithPrefix("ledger"),
		onExpire: onExpire,
		sessions: make(map[string]Session),
	}
}

// Run sweeps expired sessions until the context is cancelled.
func (l *Ledger) Run(ctx context.Context) error {
	ticker := l.clock.TickerFunc(ctx, l.interval, func() error {
		l.reap()
		return nil
	}, "session-reaper")
	err := ticker.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Track records a dropped seat. Tracking the same user again replaces
// the previous session and restarts the window.
func (l *Ledger) Track(userID, tableID string, seatIndex int) {
	now := l.clock.Now()
	s := Session{
		UserID:       userID,
		TableID:      tableID,
		SeatIndex:    seatIndex,
		DisconnectAt: now,
		ExpiresAt:    now.Add(l.ttl),
	}
	l.mu.Lock()
	l.sessions[userID] = s
	l.mu.Unlock()
	l.logger.Info("tracking disconnected seat", "user", userID, "table", tableID, "seat", seatIndex)
}

// Resume consumes the user's session if its window has not elapsed.
func (l *Ledger) Resume(userID string) (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if l.clock.Now().After(s.ExpiresAt) {
		// Lapsed but not yet reaped; the reaper will invoke onExpire.
		return Session{}, false
	}
	delete(l.sessions, userID)
	return s, true
}

// Forget drops a session without firing onExpire, used when the player
// leaves the table for good.
func (l *Ledger) Forget(userID string) {
	l.mu.Lock()
	delete(l.sessions, userID)
	l.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *Ledger) reap() {
	now := l.clock.Now()
	var expired []Session
	l.mu.Lock()
	for id, s := range l.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, s)
			delete(l.sessions, id)
		}
	}
	l.mu.Unlock()

	for _, s := range expired {
		l.logger.Info("session expired", "user", s.UserID, "table", s.TableID, "seat", s.SeatIndex)
		if l.onExpire != nil {
			l.onExpire(s)
		}
	}
}
