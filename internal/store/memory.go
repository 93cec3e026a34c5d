package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cardroom/cardroom/internal/gameid"
)

// Memory is the in-process store used by default and in tests.
type Memory struct {
	now func() time.Time

	mu         sync.RWMutex
	users      map[string]*User
	hashes     map[string][]byte
	byUsername map[string]string
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		users:      make(map[string]*User),
		hashes:     make(map[string][]byte),
		byUsername: make(map[string]string),
	}
}

// WithNow overrides the time source, for tests.
func (m *Memory) WithNow(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Register(_ context.Context, username, password, displayName string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, ErrWrongCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byUsername[username]; taken {
		return nil, ErrDuplicateUsername
	}
	u := &User{
		ID:          gameid.NewUserID(),
		Username:    username,
		DisplayName: displayName,
		Chips:       DefaultGuestChips,
		CreatedAt:   m.now(),
	}
	m.users[u.ID] = u
	m.hashes[u.ID] = hash
	m.byUsername[username] = u.ID
	return copyUser(u), nil
}

func (m *Memory) Authenticate(_ context.Context, username, password string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	m.mu.RLock()
	id, ok := m.byUsername[username]
	var hash []byte
	var u *User
	if ok {
		hash = m.hashes[id]
		u = m.users[id]
	}
	m.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, ErrWrongCredentials
	}
	return copyUser(u), nil
}

func (m *Memory) CreateGuest(_ context.Context, displayName string) (*User, error) {
	if displayName == "" {
		displayName = "Guest"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{
		ID:          gameid.NewUserID(),
		DisplayName: displayName,
		Chips:       DefaultGuestChips,
		Guest:       true,
		CreatedAt:   m.now(),
	}
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *Memory) Get(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) UpdateProfile(_ context.Context, id, displayName string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	return copyUser(u), nil
}

func (m *Memory) Credit(_ context.Context, id string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.Chips += amount
	return u.Chips, nil
}

func (m *Memory) Debit(_ context.Context, id string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	if u.Chips < amount {
		return u.Chips, ErrInsufficientChips
	}
	u.Chips -= amount
	return u.Chips, nil
}

func (m *Memory) ClaimDailyBonus(_ context.Context, id string, amount int, cooldown time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	now := m.now()
	if !u.LastBonusAt.IsZero() && now.Sub(u.LastBonusAt) < cooldown {
		return u.Chips, ErrBonusNotReady
	}
	u.LastBonusAt = now
	u.Chips += amount
	return u.Chips, nil
}

func (m *Memory) RecordHand(_ context.Context, id string, won bool, pot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Stats.HandsPlayed++
	if won {
		u.Stats.HandsWon++
	}
	if pot > u.Stats.BiggestPot {
		u.Stats.BiggestPot = pot
	}
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, n int) ([]User, error) {
	m.mu.RLock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	m.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].Chips != users[j].Chips {
			return users[i].Chips > users[j].Chips
		}
		return users[i].ID < users[j].ID
	})
	if n > 0 && len(users) > n {
		users = users[:n]
	}
	return users, nil
}

func (m *Memory) Close() error { return nil }

func copyUser(u *User) *User {
	c := *u
	return &c
}
