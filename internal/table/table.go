// Package table is the per-table controller. It owns one hand engine
// at a time, serializes every mutation under the table lock, schedules
// the action deadline, bot delays and the between-hand cooldown, and
// translates engine events into protocol messages with hole cards
// redacted from broadcasts.
package table

import (
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardroom/cardroom/internal/bot"
	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/internal/gameid"
	"github.com/cardroom/cardroom/internal/history"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/poker"
)

const (
	DefaultMaxSeats       = 9
	DefaultActionTimeout  = 30 * time.Second
	DefaultAutoStartDelay = 3 * time.Second
	DefaultBotDelayMin    = 500 * time.Millisecond
	DefaultBotDelayMax    = 1500 * time.Millisecond

	// Buy-in bounds in big blinds when the config leaves them zero.
	defaultMinBuyInBB = 20
	defaultMaxBuyInBB = 200
)

// Config fixes a table's stakes, seating and timing.
type Config struct {
	ID   string
	Name string

	SmallBlind int
	BigBlind   int
	Ante       int

	MaxSeats int
	MinBuyIn int
	MaxBuyIn int

	Private  bool
	Password string

	ActionTimeout  time.Duration
	AutoStartDelay time.Duration
	BotDelayMin    time.Duration
	BotDelayMax    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSeats <= 1 {
		c.MaxSeats = DefaultMaxSeats
	}
	if c.MinBuyIn <= 0 {
		c.MinBuyIn = defaultMinBuyInBB * c.BigBlind
	}
	if c.MaxBuyIn <= 0 {
		c.MaxBuyIn = defaultMaxBuyInBB * c.BigBlind
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = DefaultActionTimeout
	}
	if c.AutoStartDelay <= 0 {
		c.AutoStartDelay = DefaultAutoStartDelay
	}
	if c.BotDelayMin <= 0 {
		c.BotDelayMin = DefaultBotDelayMin
	}
	if c.BotDelayMax < c.BotDelayMin {
		c.BotDelayMax = DefaultBotDelayMax
	}
	return c
}

// Broadcaster delivers protocol events to the table's room and to
// individual players. The hub satisfies it.
type Broadcaster interface {
	ToRoom(room string, env protocol.Envelope)
	ToUser(userID string, env protocol.Envelope) bool
}

// HistorySink receives finished-hand records.
type HistorySink interface {
	Add(rec history.Record)
}

// Options carries the table's collaborators. Zero fields get working
// defaults.
type Options struct {
	Clock       quartz.Clock
	Logger      *log.Logger
	Broadcaster Broadcaster
	History     HistorySink
	Metrics     *Metrics
	Rand        *rand.Rand
	NewHandID   func() string
}

type noopBroadcaster struct{}

func (noopBroadcaster) ToRoom(string, protocol.Envelope)      {}
func (noopBroadcaster) ToUser(string, protocol.Envelope) bool { return false }

// Table is one poker table. All state is guarded by mu; timer
// callbacks re-acquire it and verify the hand they were armed for is
// still live before touching anything.
type Table struct {
	cfg    Config
	clock  quartz.Clock
	logger *log.Logger
	bc     Broadcaster
	sink   HistorySink
	met    *Metrics
	rng    *rand.Rand
	handID func() string

	mu         sync.Mutex
	seats      []*engine.Player
	deciders   map[int]*bot.Decider
	leaving    map[int]bool
	hand       *engine.Hand
	handNumber uint64
	dealer     int
	deadline   time.Time
	handStart  time.Time
	rec        *recorder
	pending    []history.Record
	revealed   map[string][]poker.Card
	emptySince time.Time
	terminated bool

	actionTimer *quartz.Timer
	botTimer    *quartz.Timer
	startTimer  *quartz.Timer
}

// New builds a table from config and collaborators.
func New(cfg Config, opts Options) *Table {
	cfg = cfg.withDefaults()
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = noopBroadcaster{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NewHandID == nil {
		opts.NewHandID = gameid.NewHandID
	}
	t := &Table{
		cfg:        cfg,
		clock:      opts.Clock,
		logger:     opts.Logger.WithPrefix("table").With("table", cfg.ID),
		bc:         opts.Broadcaster,
		sink:       opts.History,
		met:        opts.Metrics,
		rng:        opts.Rand,
		handID:     opts.NewHandID,
		seats:      make([]*engine.Player, cfg.MaxSeats),
		deciders:   make(map[int]*bot.Decider),
		leaving:    make(map[int]bool),
		dealer:     -1,
		revealed:   make(map[string][]poker.Card),
		emptySince: opts.Clock.Now(),
	}
	return t
}

// ID returns the table id.
func (t *Table) ID() string { return t.cfg.ID }

// Config returns the table configuration.
func (t *Table) Config() Config { return t.cfg }

// Info summarizes the table for lobby listings.
func (t *Table) Info() protocol.RoomInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return protocol.RoomInfo{
		ID:         t.cfg.ID,
		Name:       t.cfg.Name,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		Ante:       t.cfg.Ante,
		MaxSeats:   t.cfg.MaxSeats,
		Seated:     t.seatedLocked(),
		MinBuyIn:   t.cfg.MinBuyIn,
		MaxBuyIn:   t.cfg.MaxBuyIn,
		IsPrivate:  t.cfg.Private,
	}
}

// SeatedCount returns the number of occupied seats.
func (t *Table) SeatedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatedLocked()
}

func (t *Table) seatedLocked() int {
	n := 0
	for _, p := range t.seats {
		if p != nil {
			n++
		}
	}
	return n
}

// EmptySince reports when the last occupant left; ok is false while
// the table is occupied.
func (t *Table) EmptySince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seatedLocked() > 0 {
		return time.Time{}, false
	}
	return t.emptySince, true
}

// Terminated reports whether the table was shut down.
func (t *Table) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// Seated reports whether the player occupies a seat.
func (t *Table) Seated(playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatOfLocked(playerID) >= 0
}

// SeatOf returns the player's seat index, -1 if not seated.
func (t *Table) SeatOf(playerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seatOfLocked(playerID)
}

func (t *Table) seatOfLocked(playerID string) int {
	for i, p := range t.seats {
		if p != nil && p.ID == playerID {
			return i
		}
	}
	return -1
}

// AddPlayer seats a human at the lowest free index and announces the
// arrival to the room. The new seat joins the next hand.
func (t *Table) AddPlayer(playerID, name string, buyIn int) (int, error) {
	return t.seat(playerID, name, buyIn, false, 0)
}

// AddBot seats a house or backfill bot.
func (t *Table) AddBot(playerID, name string, buyIn int, difficulty bot.Difficulty) (int, error) {
	return t.seat(playerID, name, buyIn, true, difficulty)
}

func (t *Table) seat(playerID, name string, buyIn int, isBot bool, difficulty bot.Difficulty) (int, error) {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return -1, ErrTableTerminated
	}
	if t.seatOfLocked(playerID) >= 0 {
		t.mu.Unlock()
		return -1, ErrAlreadySeated
	}
	if buyIn < t.cfg.MinBuyIn || buyIn > t.cfg.MaxBuyIn {
		t.mu.Unlock()
		return -1, ErrBuyInOutOfRange
	}
	seat := -1
	for i, p := range t.seats {
		if p == nil {
			seat = i
			break
		}
	}
	if seat < 0 {
		t.mu.Unlock()
		return -1, ErrTableFull
	}

	t.seats[seat] = &engine.Player{
		ID:    playerID,
		Name:  name,
		Seat:  seat,
		Chips: buyIn,
		State: engine.StateWaiting,
		IsBot: isBot,
	}
	if isBot {
		t.deciders[seat] = bot.New(difficulty, t.rng)
	}
	t.logger.Info("player seated", "player", playerID, "seat", seat, "chips", buyIn, "bot", isBot)
	t.scheduleStartLocked()
	t.mu.Unlock()

	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypePlayerJoin, protocol.PlayerJoinedPayload{
		PlayerID:  playerID,
		Name:      name,
		SeatIndex: seat,
		Chips:     buyIn,
		IsBot:     isBot,
	}))
	return seat, nil
}

// RemovePlayer takes a player off the table and returns their
// remaining stack. Mid-hand the seat is folded immediately, its pot
// contributions forfeited, and the seat frees when the hand concludes.
func (t *Table) RemovePlayer(playerID string) (int, error) {
	t.mu.Lock()
	seat := t.seatOfLocked(playerID)
	if seat < 0 {
		t.mu.Unlock()
		return 0, ErrNotSeated
	}
	p := t.seats[seat]
	chips := p.Chips
	p.Chips = 0

	if t.inHandLocked() && p.InHand() {
		t.leaving[seat] = true
		t.hand.ForceFold(seat)
		t.flushLocked()
	} else {
		t.freeSeatLocked(seat)
		t.scheduleStartLocked()
	}
	t.mu.Unlock()
	t.drainHistory()

	t.logger.Info("player left", "player", playerID, "seat", seat, "chips", chips)
	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypePlayerLeave, protocol.PlayerLeftPayload{
		PlayerID: playerID,
	}))
	return chips, nil
}

func (t *Table) freeSeatLocked(seat int) {
	t.seats[seat] = nil
	delete(t.deciders, seat)
	delete(t.leaving, seat)
	if t.seatedLocked() == 0 {
		t.emptySince = t.clock.Now()
	}
}

// SitOut marks the player out of future hands; a live hand is folded
// first.
func (t *Table) SitOut(playerID string) error {
	defer t.drainHistory()
	t.mu.Lock()
	defer t.mu.Unlock()
	seat := t.seatOfLocked(playerID)
	if seat < 0 {
		return ErrNotSeated
	}
	p := t.seats[seat]
	if t.inHandLocked() && p.InHand() {
		t.hand.ForceFold(seat)
		t.flushLocked()
	}
	p.State = engine.StateSittingOut
	return nil
}

// SitIn returns a sitting-out player to the next hand.
func (t *Table) SitIn(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	seat := t.seatOfLocked(playerID)
	if seat < 0 {
		return ErrNotSeated
	}
	p := t.seats[seat]
	if p.State == engine.StateSittingOut && p.Chips > 0 {
		p.State = engine.StateWaiting
		t.scheduleStartLocked()
	}
	return nil
}

// BuyIn adds chips between hands, keeping the stack inside the
// table's buy-in ceiling.
func (t *Table) BuyIn(playerID string, amount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	seat := t.seatOfLocked(playerID)
	if seat < 0 {
		return ErrNotSeated
	}
	p := t.seats[seat]
	if t.inHandLocked() && p.InHand() {
		return ErrBuyInDuringHand
	}
	if amount <= 0 || p.Chips+amount > t.cfg.MaxBuyIn {
		return ErrBuyInOutOfRange
	}
	p.Chips += amount
	if p.State == engine.StateSittingOut && p.Chips > 0 {
		p.State = engine.StateWaiting
	}
	t.scheduleStartLocked()
	return nil
}

// Terminate shuts the table down: timers stopped, room notified. Used
// by the registry reaper, shutdown, and the engine panic path.
func (t *Table) Terminate(reason string) {
	t.mu.Lock()
	if t.terminated {
		t.mu.Unlock()
		return
	}
	t.terminated = true
	t.stopTimersLocked()
	t.hand = nil
	t.mu.Unlock()

	t.logger.Info("table terminated", "reason", reason)
	t.bc.ToRoom(t.cfg.ID, protocol.MustEnvelope(protocol.TypeError, protocol.ErrorPayload{
		Code:    "table_closed",
		Message: reason,
	}))
}

func (t *Table) stopTimersLocked() {
	if t.actionTimer != nil {
		t.actionTimer.Stop()
		t.actionTimer = nil
	}
	if t.botTimer != nil {
		t.botTimer.Stop()
		t.botTimer = nil
	}
	if t.startTimer != nil {
		t.startTimer.Stop()
		t.startTimer = nil
	}
}

// inHandLocked reports whether a hand is currently being played.
func (t *Table) inHandLocked() bool {
	return t.hand != nil && t.hand.Phase() != engine.Finished
}
