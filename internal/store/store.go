// Package store persists user accounts, chip balances and play stats.
// Three drivers share one interface: an in-process memory store, an
// embedded sqlite file, and postgres for multi-node deployments.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultGuestChips is the starting balance for guest accounts.
	DefaultGuestChips = 5000

	// DefaultDailyBonus is credited at most once per bonus cooldown.
	DefaultDailyBonus = 1000

	// DefaultBonusCooldown separates daily bonus claims.
	DefaultBonusCooldown = 24 * time.Hour
)

var (
	ErrNotFound          = errors.New("store: user not found")
	ErrDuplicateUsername = errors.New("store: username taken")
	ErrWrongCredentials  = errors.New("store: wrong credentials")
	ErrBonusNotReady     = errors.New("store: daily bonus already claimed")
	ErrInsufficientChips = errors.New("store: insufficient chips")
)

// Stats is a user's lifetime play record.
type Stats struct {
	HandsPlayed int `json:"handsPlayed"`
	HandsWon    int `json:"handsWon"`
	BiggestPot  int `json:"biggestPot"`
}

// User is one account. PasswordHash never leaves the package.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName"`
	Chips       int       `json:"chips"`
	Guest       bool      `json:"guest,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastBonusAt time.Time `json:"-"`
	Stats       Stats     `json:"stats"`
}

// Store is the persistence surface the server talks to. All chip
// mutations are atomic per user.
type Store interface {
	// Register creates a named account with a bcrypt-hashed password.
	Register(ctx context.Context, username, password, displayName string) (*User, error)
	// Authenticate checks a username/password pair.
	Authenticate(ctx context.Context, username, password string) (*User, error)
	// CreateGuest mints a throwaway account with the guest balance.
	CreateGuest(ctx context.Context, displayName string) (*User, error)
	// Get fetches a user by id.
	Get(ctx context.Context, id string) (*User, error)
	// UpdateProfile changes the display name.
	UpdateProfile(ctx context.Context, id, displayName string) (*User, error)
	// Credit adds chips and returns the new balance.
	Credit(ctx context.Context, id string, amount int) (int, error)
	// Debit removes chips, failing with ErrInsufficientChips rather
	// than going negative.
	Debit(ctx context.Context, id string, amount int) (int, error)
	// ClaimDailyBonus credits the bonus if the cooldown has elapsed.
	ClaimDailyBonus(ctx context.Context, id string, amount int, cooldown time.Duration) (int, error)
	// RecordHand folds one finished hand into the user's stats.
	RecordHand(ctx context.Context, id string, won bool, pot int) error
	// Leaderboard returns the top n users by chips.
	Leaderboard(ctx context.Context, n int) ([]User, error)
	// Close releases the backing resources.
	Close() error
}

// Open builds a store from a driver name and DSN. Supported drivers:
// "memory" (DSN ignored), "sqlite" (file path), "postgres"
// (connection string).
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(dsn)
	case "postgres":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
