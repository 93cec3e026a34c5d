package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	u, err := s.Register(ctx, "Alice", "hunter2", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice B", u.DisplayName)
	assert.Equal(t, DefaultGuestChips, u.Chips)
	assert.False(t, u.Guest)

	_, err = s.Register(ctx, "alice", "other", "")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	got, err := s.Authenticate(ctx, "ALICE", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrWrongCredentials)
	_, err = s.Authenticate(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrWrongCredentials)
}

func TestGuestAccounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	u, err := s.CreateGuest(ctx, "Visitor")
	require.NoError(t, err)
	assert.True(t, u.Guest)
	assert.Empty(t, u.Username)
	assert.Equal(t, DefaultGuestChips, u.Chips)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Visitor", got.DisplayName)
}

func TestCreditDebit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u, _ := s.CreateGuest(ctx, "v")

	balance, err := s.Credit(ctx, u.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, DefaultGuestChips+500, balance)

	balance, err = s.Debit(ctx, u.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, 500, balance)

	balance, err = s.Debit(ctx, u.ID, 501)
	assert.ErrorIs(t, err, ErrInsufficientChips)
	assert.Equal(t, 500, balance, "failed debit leaves the balance alone")

	_, err = s.Debit(ctx, "usr_missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyBonusCooldown(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s := NewMemory().WithNow(func() time.Time { return now })
	u, _ := s.CreateGuest(ctx, "v")

	balance, err := s.ClaimDailyBonus(ctx, u.ID, DefaultDailyBonus, DefaultBonusCooldown)
	require.NoError(t, err)
	assert.Equal(t, DefaultGuestChips+DefaultDailyBonus, balance)

	now = now.Add(23 * time.Hour)
	_, err = s.ClaimDailyBonus(ctx, u.ID, DefaultDailyBonus, DefaultBonusCooldown)
	assert.ErrorIs(t, err, ErrBonusNotReady)

	now = now.Add(time.Hour)
	balance, err = s.ClaimDailyBonus(ctx, u.ID, DefaultDailyBonus, DefaultBonusCooldown)
	require.NoError(t, err)
	assert.Equal(t, DefaultGuestChips+2*DefaultDailyBonus, balance)
}

func TestRecordHandStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u, _ := s.CreateGuest(ctx, "v")

	require.NoError(t, s.RecordHand(ctx, u.ID, true, 300))
	require.NoError(t, s.RecordHand(ctx, u.ID, false, 900))
	require.NoError(t, s.RecordHand(ctx, u.ID, true, 150))

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, Stats{HandsPlayed: 3, HandsWon: 2, BiggestPot: 900}, got.Stats)
}

func TestLeaderboardTopNByChips(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rich, _ := s.CreateGuest(ctx, "rich")
	mid, _ := s.CreateGuest(ctx, "mid")
	poor, _ := s.CreateGuest(ctx, "poor")
	_, _ = s.Credit(ctx, rich.ID, 10000)
	_, _ = s.Credit(ctx, mid.ID, 100)
	_, _ = s.Debit(ctx, poor.ID, 4000)

	top, err := s.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, rich.ID, top[0].ID)
	assert.Equal(t, mid.ID, top[1].ID)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	u, _ := s.CreateGuest(ctx, "v")

	got, err := s.UpdateProfile(ctx, u.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)

	_, err = s.UpdateProfile(ctx, "usr_missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenFactory(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open("oracle", "")
	assert.Error(t, err)
}

func TestPostgresPlaceholderRebind(t *testing.T) {
	q := rebindPositional("UPDATE users SET chips = chips + ? WHERE id = ? AND chips >= ?")
	assert.Equal(t, "UPDATE users SET chips = chips + $1 WHERE id = $2 AND chips >= $3", q)
}
