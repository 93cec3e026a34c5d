// Package registry owns the set of live tables: creation, lookup,
// password-checked joins, public listings, and reaping of tables that
// have sat empty past their grace period.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cardroom/cardroom/internal/gameid"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/internal/table"
)

const (
	DefaultEmptyTableTTL = 10 * time.Minute
	DefaultReapInterval  = time.Minute
)

var (
	ErrUnknownTable  = errors.New("registry: unknown table")
	ErrWrongPassword = errors.New("registry: wrong password")
)

// Registry maps table ids to live controllers.
type Registry struct {
	clock     quartz.Clock
	logger    *log.Logger
	ttl       time.Duration
	interval  time.Duration
	tableOpts table.Options
	live      prometheus.Gauge

	mu     sync.RWMutex
	tables map[string]*table.Table
}

// New builds a registry. tableOpts is the template every created table
// is wired with; its Clock is overridden by the registry's clock.
func New(clock quartz.Clock, logger *log.Logger, ttl, interval time.Duration, tableOpts table.Options, reg prometheus.Registerer) *Registry {
	if ttl <= 0 {
		ttl = DefaultEmptyTableTTL
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	tableOpts.Clock = clock
	return &Registry{
		clock:     clock,
		logger:    logger.WithPrefix("registry"),
		ttl:       ttl,
		interval:  interval,
		tableOpts: tableOpts,
		live: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cardroom_live_tables",
			Help: "Tables currently registered.",
		}),
		tables: make(map[string]*table.Table),
	}
}

// Create registers a new table from config, minting an id when the
// config leaves it empty.
func (r *Registry) Create(cfg table.Config) *table.Table {
	if cfg.ID == "" {
		cfg.ID = gameid.NewRoomID()
	}
	t := table.New(cfg, r.tableOpts)

	r.mu.Lock()
	r.tables[cfg.ID] = t
	r.mu.Unlock()

	r.live.Inc()
	r.logger.Info("table created", "table", cfg.ID, "blinds", cfg.BigBlind, "private", cfg.Private)
	return t
}

// Get looks a table up by id.
func (r *Registry) Get(id string) (*table.Table, error) {
	r.mu.RLock()
	t, ok := r.tables[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownTable
	}
	return t, nil
}

// Join seats a player after checking the table's password. Distinct
// error kinds: ErrUnknownTable, ErrWrongPassword, and the table's own
// full/duplicate-seat/buy-in rejections.
func (r *Registry) Join(id, playerID, name string, buyIn int, password string) (*table.Table, int, error) {
	t, err := r.Get(id)
	if err != nil {
		return nil, -1, err
	}
	if pw := t.Config().Password; pw != "" && pw != password {
		return nil, -1, ErrWrongPassword
	}
	seat, err := t.AddPlayer(playerID, name, buyIn)
	if err != nil {
		return nil, -1, err
	}
	return t, seat, nil
}

// Leave removes the player from the table, returning their stack.
func (r *Registry) Leave(id, playerID string) (int, error) {
	t, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return t.RemovePlayer(playerID)
}

// ListPublic enumerates non-private tables for the lobby.
func (r *Registry) ListPublic() []protocol.RoomInfo {
	r.mu.RLock()
	tables := make([]*table.Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	r.mu.RUnlock()

	infos := make([]protocol.RoomInfo, 0, len(tables))
	for _, t := range tables {
		if t.Config().Private {
			continue
		}
		infos = append(infos, t.Info())
	}
	return infos
}

// Tables snapshots every registered table, used by the shutdown drain.
func (r *Registry) Tables() []*table.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*table.Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// Count returns the number of registered tables.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Remove terminates and deregisters a table.
func (r *Registry) Remove(id, reason string) {
	r.mu.Lock()
	t, ok := r.tables[id]
	if ok {
		delete(r.tables, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	t.Terminate(reason)
	r.live.Dec()
	r.logger.Info("table removed", "table", id, "reason", reason)
}

// Run sweeps for reapable tables until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	err := r.clock.TickerFunc(ctx, r.interval, func() error {
		r.reap()
		return nil
	}, "table-reaper").Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Registry) reap() {
	now := r.clock.Now()
	r.mu.RLock()
	var victims []string
	for id, t := range r.tables {
		if t.Terminated() {
			victims = append(victims, id)
			continue
		}
		if since, ok := t.EmptySince(); ok && now.Sub(since) >= r.ttl {
			victims = append(victims, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range victims {
		r.Remove(id, "empty table expired")
	}
}
