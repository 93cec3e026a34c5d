// Package server assembles the cardroom: websocket endpoint, envelope
// dispatch, HTTP side surface, and the background services (registry
// reaper, matchmaker sweeps, session reaper) under one run group with
// a bounded graceful drain.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/cardroom/cardroom/internal/auth"
	"github.com/cardroom/cardroom/internal/bot"
	"github.com/cardroom/cardroom/internal/history"
	"github.com/cardroom/cardroom/internal/httpapi"
	"github.com/cardroom/cardroom/internal/hub"
	"github.com/cardroom/cardroom/internal/matchmaker"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/internal/registry"
	"github.com/cardroom/cardroom/internal/session"
	"github.com/cardroom/cardroom/internal/store"
	"github.com/cardroom/cardroom/internal/table"
)

// Server owns every subsystem for one process.
type Server struct {
	cfg    Config
	logger *log.Logger
	clock  quartz.Clock

	store    store.Store
	authn    *auth.Authenticator
	hub      *hub.Hub
	registry *registry.Registry
	match    *matchmaker.Matchmaker
	ledger   *session.Ledger
	archive  *history.Archive
	api      *httpapi.API
	promReg  *prometheus.Registry
	upgrader websocket.Upgrader

	connSeq atomic.Uint64

	// Pending quick-match buy-ins already debited from the store, so a
	// cancel can refund exactly what was taken.
	matchMu     sync.Mutex
	matchBuyIns map[string]int

	chatMu   sync.Mutex
	lastChat map[string]time.Time

	// Seat bindings by user id. The hub clears a client's room before
	// the disconnect callback fires, so the server keeps its own record
	// of where each player sits.
	roomMu sync.Mutex
	roomOf map[string]seatRef
}

// New wires a server from config. The store is opened here; Close
// releases it.
func New(cfg Config, fileCfg *FileConfig, logger *log.Logger, clock quartz.Clock) (*Server, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if fileCfg == nil {
		fileCfg = &FileConfig{}
	}

	st, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	s := &Server{
		cfg:         cfg,
		logger:      logger.WithPrefix("server"),
		clock:       clock,
		store:       st,
		authn:       auth.New(cfg.JWTSecret),
		archive:     history.NewArchive(history.DefaultLimit),
		promReg:     promReg,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		matchBuyIns: make(map[string]int),
		lastChat:    make(map[string]time.Time),
		roomOf:      make(map[string]seatRef),
	}

	s.hub = hub.New(logger, hub.NewMetrics(promReg))
	s.hub.OnDisconnect(s.onDisconnect)

	tableOpts := table.Options{
		Clock:       clock,
		Logger:      logger,
		Broadcaster: s.hub,
		History:     &statsSink{server: s},
		Metrics:     table.NewMetrics(promReg),
	}
	s.registry = registry.New(clock, logger, cfg.EmptyTableTTL, registry.DefaultReapInterval, tableOpts, promReg)

	s.match = matchmaker.New(s.registry, matchmaker.Options{
		Clock:      clock,
		Logger:     logger,
		Timeout:    cfg.MatchmakingTimeout,
		AIFillMin:  cfg.AIFillDelayMin,
		AIFillMax:  cfg.AIFillDelayMax,
		TableSeats: 6,
		Registry:   promReg,
	})

	s.ledger = session.NewLedger(clock, cfg.SessionTTL, session.DefaultReapInterval, logger, s.onSessionExpired)

	s.api = httpapi.New(httpapi.Config{}, logger, st, s.authn, s.registry, s.archive, promReg)

	if err := s.seedStatics(fileCfg); err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}

// seedStatics creates the HCL-declared tables and seats their house
// bots.
func (s *Server) seedStatics(fileCfg *FileConfig) error {
	byName := make(map[string]*table.Table)
	for _, tb := range fileCfg.Tables {
		maxSeats := tb.MaxPlayers
		if maxSeats == 0 {
			maxSeats = s.cfg.MaxPlayersPerRoom
		}
		tbl := s.registry.Create(table.Config{
			Name:           tb.Name,
			SmallBlind:     tb.SmallBlind,
			BigBlind:       tb.BigBlind,
			Ante:           tb.Ante,
			MaxSeats:       maxSeats,
			MinBuyIn:       tb.BuyInMin,
			MaxBuyIn:       tb.BuyInMax,
			Private:        tb.Private,
			Password:       tb.Password,
			ActionTimeout:  s.cfg.ActionTimeout,
			AutoStartDelay: table.DefaultAutoStartDelay,
		})
		byName[tb.Name] = tbl
	}
	for i, bb := range fileCfg.Bots {
		tbl, ok := byName[bb.Table]
		if !ok {
			return fmt.Errorf("server: bot %q references unknown table %q", bb.Name, bb.Table)
		}
		buyIn := bb.BuyIn
		if buyIn == 0 {
			buyIn = 100 * tbl.Config().BigBlind
		}
		id := fmt.Sprintf("bot_house_%d", i+1)
		if _, err := tbl.AddBot(id, bb.Name, buyIn, bot.ParseDifficulty(bb.Difficulty)); err != nil {
			return fmt.Errorf("server: seat house bot %q: %w", bb.Name, err)
		}
	}
	return nil
}

// Router mounts the REST surface plus the websocket endpoint.
func (s *Server) Router() http.Handler {
	r := s.api.Router()
	r.GET("/ws", func(c *gin.Context) {
		s.handleWS(c.Writer, c.Request)
	})
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	id := fmt.Sprintf("conn_%d", s.connSeq.Add(1))
	c := hub.NewClient(s.hub, conn, id, s.logger)
	s.hub.Register(c)

	c.Send(protocol.MustEnvelope(protocol.TypeConnected, protocol.ConnectedPayload{ClientID: id}))

	go c.WritePump()
	c.ReadPump(s.dispatch)
	s.hub.Unregister(c)
}

// Run serves until ctx is cancelled, then drains within the shutdown
// bound.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.registry.Run(ctx) })
	g.Go(func() error { return s.match.Run(ctx) })
	g.Go(func() error { return s.ledger.Run(ctx) })

	httpSrv := &http.Server{Addr: s.cfg.Addr, Handler: s.Router()}
	g.Go(func() error {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.drain(httpSrv)
		return nil
	})

	err := g.Wait()
	s.store.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// drain terminates every table, credits stacks back to the store, and
// shuts the listener down within the configured bound.
func (s *Server) drain(httpSrv *http.Server) {
	s.logger.Info("shutting down", "bound", s.cfg.ShutdownDrain)
	for _, tbl := range s.registry.Tables() {
		for userID, chips := range tbl.Stacks() {
			if chips > 0 {
				if _, err := s.store.Credit(context.Background(), userID, chips); err != nil {
					s.logger.Error("failed to credit stack on shutdown", "user", userID, "error", err)
				}
			}
		}
		s.registry.Remove(tbl.ID(), "server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownDrain)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("listener shutdown", "error", err)
	}
}

// seatRef is the server's own record of where a player sits, kept so
// the disconnect path never has to ask the table.
type seatRef struct {
	roomID string
	seat   int
}

// bindRoom records which table and seat a player occupies.
func (s *Server) bindRoom(userID, roomID string, seat int) {
	s.roomMu.Lock()
	s.roomOf[userID] = seatRef{roomID: roomID, seat: seat}
	s.roomMu.Unlock()
}

func (s *Server) unbindRoom(userID string) {
	s.roomMu.Lock()
	delete(s.roomOf, userID)
	s.roomMu.Unlock()
}

func (s *Server) seatFor(userID string) (seatRef, bool) {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	ref, ok := s.roomOf[userID]
	return ref, ok
}

// onDisconnect feeds the reconnection ledger when a seated player's
// connection drops. A superseded connection is not a disconnect. This
// callback can fire from inside a table broadcast (slow-client drop),
// so it must never call back into table methods; the seat comes from
// the server's own record, taken at seating time.
func (s *Server) onDisconnect(c *hub.Client) {
	userID := c.UserID()
	if userID == "" || s.hub.ClientByUser(userID) != nil {
		return
	}
	ref, ok := s.seatFor(userID)
	if !ok {
		return
	}
	s.ledger.Track(userID, ref.roomID, ref.seat)
}

// onSessionExpired removes the player whose reconnection window
// lapsed and credits their remaining stack.
func (s *Server) onSessionExpired(sess session.Session) {
	s.unbindRoom(sess.UserID)
	tbl, err := s.registry.Get(sess.TableID)
	if err != nil {
		return
	}
	chips, err := tbl.RemovePlayer(sess.UserID)
	if err != nil {
		return
	}
	if chips > 0 {
		if _, err := s.store.Credit(context.Background(), sess.UserID, chips); err != nil {
			s.logger.Error("failed to credit expired session", "user", sess.UserID, "error", err)
		}
	}
	s.logger.Info("reconnection window expired, seat released", "user", sess.UserID, "table", sess.TableID)
}

// statsSink archives hand records and folds results into user stats.
type statsSink struct {
	server *Server
}

func (ss *statsSink) Add(rec history.Record) {
	s := ss.server
	s.archive.Add(rec)

	won := make(map[string]bool)
	for _, w := range rec.Winners {
		won[w.PlayerID] = true
	}
	ctx := context.Background()
	for _, ps := range rec.PlayerSnapshots {
		err := s.store.RecordHand(ctx, ps.PlayerID, won[ps.PlayerID], rec.FinalPot)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to record hand stats", "user", ps.PlayerID, "error", err)
		}
	}
}
