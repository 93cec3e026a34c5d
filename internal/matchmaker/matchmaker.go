// Package matchmaker batches quick-match players of compatible stakes
// into fresh tables. Players who wait out the matchmaking timeout get
// a private table backfilled with bots.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cardroom/cardroom/internal/bot"
	"github.com/cardroom/cardroom/internal/table"
)

const (
	DefaultSweepInterval = time.Second
	DefaultTimeout       = 60 * time.Second
	DefaultAIFillMin     = 5 * time.Second
	DefaultAIFillMax     = 10 * time.Second
	DefaultTableSeats    = 6

	// Default buy-in for matched tables, in big blinds.
	defaultBuyInBB = 100
)

// Tier is one fixed stake level.
type Tier struct {
	SmallBlind int
	BigBlind   int
}

// Tiers are the stake buckets players may queue into, keyed by big
// blind on the wire.
var Tiers = []Tier{
	{5, 10}, {10, 20}, {25, 50}, {50, 100}, {100, 200}, {250, 500},
}

// TierFor resolves a big blind to its tier.
func TierFor(bigBlind int) (Tier, bool) {
	for _, tier := range Tiers {
		if tier.BigBlind == bigBlind {
			return tier, true
		}
	}
	return Tier{}, false
}

var ErrUnknownTier = errors.New("matchmaker: unknown stake tier")

// Tables creates the tables that matches are seated at. The registry
// satisfies it.
type Tables interface {
	Create(cfg table.Config) *table.Table
}

// MatchedFunc tells a queued player where they ended up.
type MatchedFunc func(playerID string, tbl *table.Table, seat int)

type ticket struct {
	playerID string
	name     string
	buyIn    int
	enqueued time.Time
	notify   MatchedFunc
}

// Options configures a Matchmaker; zero fields get defaults.
type Options struct {
	Clock         quartz.Clock
	Logger        *log.Logger
	Rand          *rand.Rand
	SweepInterval time.Duration
	Timeout       time.Duration
	AIFillMin     time.Duration
	AIFillMax     time.Duration
	TableSeats    int
	Registry      prometheus.Registerer
}

// Matchmaker owns the stake buckets and the sweep loop.
type Matchmaker struct {
	clock    quartz.Clock
	logger   *log.Logger
	rng      *rand.Rand
	tables   Tables
	interval time.Duration
	timeout  time.Duration
	aiMin    time.Duration
	aiMax    time.Duration
	seats    int

	queued   prometheus.Gauge
	matches  prometheus.Counter
	timeouts prometheus.Counter

	mu       sync.Mutex
	buckets  map[int][]*ticket // keyed by big blind
	byPlayer map[string]int
	botSeq   int
}

// New builds a matchmaker over the given table factory.
func New(tables Tables, opts Options) *Matchmaker {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.AIFillMin <= 0 {
		opts.AIFillMin = DefaultAIFillMin
	}
	if opts.AIFillMax < opts.AIFillMin {
		opts.AIFillMax = DefaultAIFillMax
	}
	if opts.TableSeats <= 1 {
		opts.TableSeats = DefaultTableSeats
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(opts.Registry)
	return &Matchmaker{
		clock:    opts.Clock,
		logger:   opts.Logger.WithPrefix("matchmaker"),
		rng:      opts.Rand,
		tables:   tables,
		interval: opts.SweepInterval,
		timeout:  opts.Timeout,
		aiMin:    opts.AIFillMin,
		aiMax:    opts.AIFillMax,
		seats:    opts.TableSeats,
		queued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cardroom_matchmaking_queued",
			Help: "Players currently waiting in a stake bucket.",
		}),
		matches: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_matches_formed_total",
			Help: "Tables formed by batching queued players.",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_matchmaking_timeouts_total",
			Help: "Players matched against bots after waiting out the timeout.",
		}),
		buckets:  make(map[int][]*ticket),
		byPlayer: make(map[string]int),
	}
}

// Enqueue puts a player into the bucket for the given big blind.
// Re-entry while already queued is a no-op.
func (m *Matchmaker) Enqueue(playerID, name string, bigBlind, buyIn int, notify MatchedFunc) error {
	tier, ok := TierFor(bigBlind)
	if !ok {
		return ErrUnknownTier
	}
	if buyIn <= 0 {
		buyIn = defaultBuyInBB * tier.BigBlind
	}
	// Keep the buy-in inside the matched table's default bounds.
	if min := 20 * tier.BigBlind; buyIn < min {
		buyIn = min
	}
	if max := 200 * tier.BigBlind; buyIn > max {
		buyIn = max
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, queued := m.byPlayer[playerID]; queued {
		return nil
	}
	m.buckets[tier.BigBlind] = append(m.buckets[tier.BigBlind], &ticket{
		playerID: playerID,
		name:     name,
		buyIn:    buyIn,
		enqueued: m.clock.Now(),
		notify:   notify,
	})
	m.byPlayer[playerID] = tier.BigBlind
	m.queued.Inc()
	m.logger.Info("player queued", "player", playerID, "tier", tier.BigBlind)
	return nil
}

// Cancel withdraws a player from their bucket. It reports whether the
// player was still queued; a false return means a match already
// claimed them.
func (m *Matchmaker) Cancel(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, queued := m.byPlayer[playerID]
	if !queued {
		return false
	}
	delete(m.byPlayer, playerID)
	bucket := m.buckets[key]
	for i, tk := range bucket {
		if tk.playerID == playerID {
			m.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	m.queued.Dec()
	m.logger.Info("player cancelled matchmaking", "player", playerID)
	return true
}

// QueuedCount returns the number of waiting players across buckets.
func (m *Matchmaker) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPlayer)
}

// Run sweeps every bucket once per interval until ctx is cancelled.
func (m *Matchmaker) Run(ctx context.Context) error {
	err := m.clock.TickerFunc(ctx, m.interval, func() error {
		m.sweep()
		return nil
	}, "matchmaker-sweep").Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Matchmaker) sweep() {
	now := m.clock.Now()

	type placement struct {
		tk   *ticket
		tbl  *table.Table
		seat int
	}
	var placed []placement

	m.mu.Lock()
	for _, tier := range Tiers {
		bucket := m.buckets[tier.BigBlind]
		for len(bucket) >= 2 {
			n := len(bucket)
			if n > m.seats {
				n = m.seats
			}
			batch := bucket[:n]
			bucket = bucket[n:]
			tbl := m.tables.Create(table.Config{
				Name:       fmt.Sprintf("Quick Match %d/%d", tier.SmallBlind, tier.BigBlind),
				SmallBlind: tier.SmallBlind,
				BigBlind:   tier.BigBlind,
				MaxSeats:   m.seats,
			})
			for _, tk := range batch {
				seat, err := tbl.AddPlayer(tk.playerID, tk.name, tk.buyIn)
				if err != nil {
					m.logger.Error("failed to seat matched player", "player", tk.playerID, "error", err)
					seat = -1
				}
				delete(m.byPlayer, tk.playerID)
				m.queued.Dec()
				placed = append(placed, placement{tk: tk, tbl: tbl, seat: seat})
			}
			m.matches.Inc()
			m.logger.Info("match formed", "table", tbl.ID(), "tier", tier.BigBlind, "players", n)
		}

		// A lone leftover past the timeout plays against the house.
		var keep []*ticket
		for _, tk := range bucket {
			if now.Sub(tk.enqueued) < m.timeout {
				keep = append(keep, tk)
				continue
			}
			tbl := m.tables.Create(table.Config{
				Name:       fmt.Sprintf("Quick Match %d/%d", tier.SmallBlind, tier.BigBlind),
				SmallBlind: tier.SmallBlind,
				BigBlind:   tier.BigBlind,
				MaxSeats:   m.seats,
				Private:    true,
			})
			seat, err := tbl.AddPlayer(tk.playerID, tk.name, tk.buyIn)
			if err != nil {
				m.logger.Error("failed to seat timed-out player", "player", tk.playerID, "error", err)
				seat = -1
			}
			delete(m.byPlayer, tk.playerID)
			m.queued.Dec()
			m.timeouts.Inc()
			m.scheduleBackfillLocked(tbl, tk.buyIn)
			m.logger.Info("matchmaking timeout, playing the house", "player", tk.playerID, "table", tbl.ID())
			placed = append(placed, placement{tk: tk, tbl: tbl, seat: seat})
		}
		m.buckets[tier.BigBlind] = keep
	}
	m.mu.Unlock()

	for _, p := range placed {
		if p.tk.notify != nil {
			p.tk.notify(p.tk.playerID, p.tbl, p.seat)
		}
	}
}

// scheduleBackfillLocked arms the delayed bot fill for a timeout
// table.
func (m *Matchmaker) scheduleBackfillLocked(tbl *table.Table, buyIn int) {
	delay := m.aiMin
	if span := m.aiMax - m.aiMin; span > 0 {
		delay += time.Duration(m.rng.Int63n(int64(span)))
	}
	m.clock.AfterFunc(delay, func() {
		m.backfill(tbl, buyIn)
	})
}

var botNames = []string{"Ada", "Blaise", "Curie", "Dijkstra", "Erdos", "Fermat", "Gauss", "Hopper"}

func (m *Matchmaker) backfill(tbl *table.Table, buyIn int) {
	difficulties := []bot.Difficulty{bot.Easy, bot.Medium, bot.Hard, bot.Expert}
	for tbl.SeatedCount() < tbl.Config().MaxSeats {
		m.mu.Lock()
		m.botSeq++
		id := fmt.Sprintf("bot_%d", m.botSeq)
		name := botNames[m.rng.Intn(len(botNames))]
		difficulty := difficulties[m.rng.Intn(len(difficulties))]
		m.mu.Unlock()
		if _, err := tbl.AddBot(id, name, buyIn, difficulty); err != nil {
			m.logger.Warn("bot backfill stopped", "table", tbl.ID(), "error", err)
			return
		}
	}
}
