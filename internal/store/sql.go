package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/cardroom/cardroom/internal/gameid"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT,
	display_name  TEXT NOT NULL,
	password_hash TEXT,
	chips         BIGINT NOT NULL,
	guest         INTEGER NOT NULL DEFAULT 0,
	created_at    BIGINT NOT NULL,
	last_bonus_at BIGINT NOT NULL DEFAULT 0,
	hands_played  BIGINT NOT NULL DEFAULT 0,
	hands_won     BIGINT NOT NULL DEFAULT 0,
	biggest_pot   BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username ON users (username) WHERE username IS NOT NULL;
CREATE INDEX IF NOT EXISTS users_chips ON users (chips);
`

// sqlStore backs the Store interface with database/sql. Timestamps are
// stored as unix seconds so sqlite and postgres behave identically.
type sqlStore struct {
	db   *sql.DB
	bind func(string) string
	now  func() time.Time
}

// OpenSQLite opens (and migrates) an embedded sqlite database at path.
func OpenSQLite(path string) (Store, error) {
	if path == "" {
		path = "cardroom.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent table settlements.
	db.SetMaxOpenConns(1)
	return newSQLStore(db, func(q string) string { return q })
}

// OpenPostgres connects to postgres with the given DSN and migrates.
func OpenPostgres(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return newSQLStore(db, rebindPositional)
}

func newSQLStore(db *sql.DB, bind func(string) string) (Store, error) {
	s := &sqlStore{db: db, bind: bind, now: time.Now}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	return s, nil
}

// rebindPositional rewrites ? placeholders into postgres $n form.
func rebindPositional(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const userColumns = "id, username, display_name, chips, guest, created_at, last_bonus_at, hands_played, hands_won, biggest_pot"

func (s *sqlStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var username sql.NullString
	var guest, created, bonus int64
	err := row.Scan(&u.ID, &username, &u.DisplayName, &u.Chips, &guest,
		&created, &bonus, &u.Stats.HandsPlayed, &u.Stats.HandsWon, &u.Stats.BiggestPot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.Guest = guest != 0
	u.CreatedAt = time.Unix(created, 0)
	if bonus > 0 {
		u.LastBonusAt = time.Unix(bonus, 0)
	}
	return &u, nil
}

func (s *sqlStore) Register(ctx context.Context, username, password, displayName string) (*User, error) {
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

	var exists int
	err = s.db.QueryRowContext(ctx, s.bind("SELECT COUNT(1) FROM users WHERE username = ?"), username).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, ErrDuplicateUsername
	}

	u := &User{
		ID:          gameid.NewUserID(),
		Username:    username,
		DisplayName: displayName,
		Chips:       DefaultGuestChips,
		CreatedAt:   s.now(),
	}
	_, err = s.db.ExecContext(ctx, s.bind(
		"INSERT INTO users (id, username, display_name, password_hash, chips, guest, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)"),
		u.ID, u.Username, u.DisplayName, string(hash), u.Chips, u.CreatedAt.Unix())
	if err != nil {
		// The unique index closes the check-then-insert race.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return u, nil
}

func (s *sqlStore) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var id, hash string
	err := s.db.QueryRowContext(ctx, s.bind(
		"SELECT id, password_hash FROM users WHERE username = ?"), username).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWrongCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrWrongCredentials
	}
	return s.Get(ctx, id)
}

func (s *sqlStore) CreateGuest(ctx context.Context, displayName string) (*User, error) {
	if displayName == "" {
		displayName = "Guest"
	}
	u := &User{
		ID:          gameid.NewUserID(),
		DisplayName: displayName,
		Chips:       DefaultGuestChips,
		Guest:       true,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx, s.bind(
		"INSERT INTO users (id, username, display_name, chips, guest, created_at) VALUES (?, NULL, ?, ?, 1, ?)"),
		u.ID, u.DisplayName, u.Chips, u.CreatedAt.Unix())
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.bind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return s.scanUser(row)
}

func (s *sqlStore) UpdateProfile(ctx context.Context, id, displayName string) (*User, error) {
	if displayName != "" {
		res, err := s.db.ExecContext(ctx, s.bind("UPDATE users SET display_name = ? WHERE id = ?"), displayName, id)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *sqlStore) Credit(ctx context.Context, id string, amount int) (int, error) {
	res, err := s.db.ExecContext(ctx, s.bind("UPDATE users SET chips = chips + ? WHERE id = ?"), amount, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.Chips, nil
}

func (s *sqlStore) Debit(ctx context.Context, id string, amount int) (int, error) {
	res, err := s.db.ExecContext(ctx, s.bind(
		"UPDATE users SET chips = chips - ? WHERE id = ? AND chips >= ?"), amount, id, amount)
	if err != nil {
		return 0, err
	}
	u, getErr := s.Get(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return u.Chips, ErrInsufficientChips
	}
	return u.Chips, nil
}

func (s *sqlStore) ClaimDailyBonus(ctx context.Context, id string, amount int, cooldown time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-cooldown).Unix()
	res, err := s.db.ExecContext(ctx, s.bind(
		"UPDATE users SET chips = chips + ?, last_bonus_at = ? WHERE id = ? AND last_bonus_at <= ?"),
		amount, now.Unix(), id, cutoff)
	if err != nil {
		return 0, err
	}
	u, getErr := s.Get(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return u.Chips, ErrBonusNotReady
	}
	return u.Chips, nil
}

func (s *sqlStore) RecordHand(ctx context.Context, id string, won bool, pot int) error {
	wonN := 0
	if won {
		wonN = 1
	}
	res, err := s.db.ExecContext(ctx, s.bind(
		"UPDATE users SET hands_played = hands_played + 1, hands_won = hands_won + ?, biggest_pot = CASE WHEN ? > biggest_pot THEN ? ELSE biggest_pot END WHERE id = ?"),
		wonN, pot, pot, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Leaderboard(ctx context.Context, n int) ([]User, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, s.bind(
		"SELECT "+userColumns+" FROM users ORDER BY chips DESC, id ASC LIMIT ?"), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var username sql.NullString
		var guest, created, bonus int64
		if err := rows.Scan(&u.ID, &username, &u.DisplayName, &u.Chips, &guest,
			&created, &bonus, &u.Stats.HandsPlayed, &u.Stats.HandsWon, &u.Stats.BiggestPot); err != nil {
			return nil, err
		}
		u.Username = username.String
		u.Guest = guest != 0
		u.CreatedAt = time.Unix(created, 0)
		if bonus > 0 {
			u.LastBonusAt = time.Unix(bonus, 0)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *sqlStore) Close() error { return s.db.Close() }
