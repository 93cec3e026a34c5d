package server

import (
	"context"
	"errors"
	"time"

	"github.com/cardroom/cardroom/internal/engine"
	"github.com/cardroom/cardroom/internal/hub"
	"github.com/cardroom/cardroom/internal/matchmaker"
	"github.com/cardroom/cardroom/internal/protocol"
	"github.com/cardroom/cardroom/internal/registry"
	"github.com/cardroom/cardroom/internal/store"
	"github.com/cardroom/cardroom/internal/table"
)

// Minimum spacing between chat lines from one connection.
const chatInterval = 500 * time.Millisecond

// dispatch routes one inbound envelope. It runs on the connection's
// read goroutine.
func (s *Server) dispatch(c *hub.Client, env protocol.Envelope) {
	if env.Type == protocol.TypePing {
		c.Send(protocol.MustEnvelope(protocol.TypePong, nil))
		return
	}
	if env.Type == protocol.TypeAuth {
		s.handleAuth(c, env)
		return
	}
	if c.UserID() == "" {
		s.sendErr(c, "unauthorized", "authenticate first")
		return
	}

	switch env.Type {
	case protocol.TypeCreateRoom:
		s.handleCreateRoom(c, env)
	case protocol.TypeJoinRoom:
		s.handleJoinRoom(c, env)
	case protocol.TypeLeaveRoom:
		s.handleLeaveRoom(c)
	case protocol.TypeQuickMatch:
		s.handleQuickMatch(c, env)
	case protocol.TypeCancelMatch:
		s.handleCancelMatch(c)
	case protocol.TypePlayerAction:
		s.handlePlayerAction(c, env)
	case protocol.TypeChat:
		s.handleChat(c, env)
	case protocol.TypeSitOut:
		s.withTable(c, func(t *table.Table) error { return t.SitOut(c.UserID()) })
	case protocol.TypeSitIn:
		s.withTable(c, func(t *table.Table) error { return t.SitIn(c.UserID()) })
	case protocol.TypeBuyIn:
		s.handleBuyIn(c, env)
	default:
		s.sendErr(c, "unknown_type", "unknown message type: "+env.Type)
	}
}

func (s *Server) handleAuth(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.AuthRequest](env)
	if err != nil {
		s.sendErr(c, "malformed", "malformed auth request")
		return
	}
	claims, err := s.authn.Verify(req.Token)
	if err != nil {
		c.Send(protocol.MustEnvelope(protocol.TypeAuthFailed, protocol.AuthFailedPayload{
			Error: "invalid token",
		}))
		return
	}
	c.BindUser(claims.Subject, claims.Name)

	var resumedAt *table.Table
	if sess, ok := s.ledger.Resume(claims.Subject); ok {
		if tbl, err := s.registry.Get(sess.TableID); err == nil && tbl.Seated(claims.Subject) {
			s.hub.JoinRoom(c, sess.TableID)
			s.bindRoom(claims.Subject, sess.TableID, sess.SeatIndex)
			resumedAt = tbl
		}
	}
	c.Send(protocol.MustEnvelope(protocol.TypeAuthSuccess, protocol.AuthSuccessPayload{
		PlayerID: claims.Subject,
		Name:     claims.Name,
		Resumed:  resumedAt != nil,
	}))
	if resumedAt != nil {
		c.Send(protocol.MustEnvelope(protocol.TypeGameState, resumedAt.PrivateStateFor(claims.Subject)))
	}
	s.logger.Info("client authenticated", "client", c.ID(), "user", claims.Subject, "resumed", resumedAt != nil)
}

func (s *Server) handleCreateRoom(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.CreateRoomRequest](env)
	if err != nil {
		s.sendErr(c, "malformed", "malformed create_room request")
		return
	}
	cfg := table.Config{
		Name:       req.Config.Name,
		SmallBlind: req.Config.SmallBlind,
		BigBlind:   req.Config.BigBlind,
		Ante:       req.Config.Ante,
		MaxSeats:   req.Config.MaxSeats,
		MinBuyIn:   req.Config.MinBuyIn,
		MaxBuyIn:   req.Config.MaxBuyIn,
		Private:    req.Config.IsPrivate,
		Password:   req.Config.Password,
	}
	if cfg.SmallBlind <= 0 {
		cfg.SmallBlind = s.cfg.DefaultSmallBlind
	}
	if cfg.BigBlind <= cfg.SmallBlind {
		cfg.BigBlind = 2 * cfg.SmallBlind
	}
	if cfg.MaxSeats <= 0 || cfg.MaxSeats > s.cfg.MaxPlayersPerRoom {
		cfg.MaxSeats = s.cfg.MaxPlayersPerRoom
	}
	cfg.ActionTimeout = s.cfg.ActionTimeout

	buyIn := req.BuyIn
	if buyIn <= 0 {
		buyIn = 100 * cfg.BigBlind
	}
	if _, err := s.store.Debit(context.Background(), c.UserID(), buyIn); err != nil {
		s.sendStoreErr(c, err)
		return
	}

	tbl := s.registry.Create(cfg)
	seat, err := tbl.AddPlayer(c.UserID(), c.Name(), buyIn)
	if err != nil {
		s.refund(c.UserID(), buyIn)
		s.registry.Remove(tbl.ID(), "creator could not be seated")
		s.sendTableErr(c, err)
		return
	}
	s.hub.JoinRoom(c, tbl.ID())
	s.bindRoom(c.UserID(), tbl.ID(), seat)
	c.Send(protocol.MustEnvelope(protocol.TypeRoomJoined, protocol.RoomJoinedPayload{
		Room:      tbl.Info(),
		SeatIndex: seat,
	}))
	c.Send(protocol.MustEnvelope(protocol.TypeGameState, tbl.PrivateStateFor(c.UserID())))
}

func (s *Server) handleJoinRoom(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.JoinRoomRequest](env)
	if err != nil {
		s.sendErr(c, "malformed", "malformed join_room request")
		return
	}
	tbl, err := s.registry.Get(req.RoomID)
	if err != nil {
		s.sendTableErr(c, err)
		return
	}
	buyIn := req.BuyIn
	if buyIn <= 0 {
		buyIn = 100 * tbl.Config().BigBlind
	}
	if _, err := s.store.Debit(context.Background(), c.UserID(), buyIn); err != nil {
		s.sendStoreErr(c, err)
		return
	}
	tbl, seat, err := s.registry.Join(req.RoomID, c.UserID(), c.Name(), buyIn, req.Password)
	if err != nil {
		s.refund(c.UserID(), buyIn)
		s.sendTableErr(c, err)
		return
	}
	s.hub.JoinRoom(c, tbl.ID())
	s.bindRoom(c.UserID(), tbl.ID(), seat)
	c.Send(protocol.MustEnvelope(protocol.TypeRoomJoined, protocol.RoomJoinedPayload{
		Room:      tbl.Info(),
		SeatIndex: seat,
	}))
	c.Send(protocol.MustEnvelope(protocol.TypeGameState, tbl.PrivateStateFor(c.UserID())))
}

func (s *Server) handleLeaveRoom(c *hub.Client) {
	roomID := c.Room()
	if roomID == "" {
		s.sendErr(c, "not_in_room", "not in a room")
		return
	}
	chips, err := s.registry.Leave(roomID, c.UserID())
	if err != nil {
		s.sendTableErr(c, err)
		return
	}
	if chips > 0 {
		s.refund(c.UserID(), chips)
	}
	s.hub.LeaveRoom(c)
	s.unbindRoom(c.UserID())
	s.ledger.Forget(c.UserID())
	c.Send(protocol.MustEnvelope(protocol.TypeRoomLeft, nil))
}

func (s *Server) handleQuickMatch(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.QuickMatchRequest](env)
	if err != nil {
		s.sendErr(c, "malformed", "malformed quick_match request")
		return
	}
	tier, ok := matchmaker.TierFor(req.BlindLevel)
	if !ok {
		s.sendErr(c, "unknown_tier", "unknown stake tier")
		return
	}
	// Mirror the matchmaker's clamp so the debit matches the eventual
	// seat exactly.
	buyIn := req.BuyIn
	if buyIn <= 0 {
		buyIn = 100 * tier.BigBlind
	}
	if min := 20 * tier.BigBlind; buyIn < min {
		buyIn = min
	}
	if max := 200 * tier.BigBlind; buyIn > max {
		buyIn = max
	}

	userID, name := c.UserID(), c.Name()
	if _, err := s.store.Debit(context.Background(), userID, buyIn); err != nil {
		s.sendStoreErr(c, err)
		return
	}
	s.matchMu.Lock()
	s.matchBuyIns[userID] = buyIn
	s.matchMu.Unlock()

	err = s.match.Enqueue(userID, name, req.BlindLevel, buyIn, s.onMatched)
	if err != nil {
		s.matchMu.Lock()
		delete(s.matchBuyIns, userID)
		s.matchMu.Unlock()
		s.refund(userID, buyIn)
		s.sendErr(c, "unknown_tier", err.Error())
	}
}

// onMatched runs on the matchmaker's sweep goroutine once a queued
// player lands at a table.
func (s *Server) onMatched(playerID string, tbl *table.Table, seat int) {
	s.matchMu.Lock()
	buyIn := s.matchBuyIns[playerID]
	delete(s.matchBuyIns, playerID)
	s.matchMu.Unlock()

	if seat < 0 {
		s.refund(playerID, buyIn)
		s.hub.ToUser(playerID, protocol.MustEnvelope(protocol.TypeError, protocol.ErrorPayload{
			Code:    "match_failed",
			Message: "could not be seated, buy-in refunded",
		}))
		return
	}
	if c := s.hub.ClientByUser(playerID); c != nil {
		s.hub.JoinRoom(c, tbl.ID())
	}
	s.bindRoom(playerID, tbl.ID(), seat)
	s.hub.ToUser(playerID, protocol.MustEnvelope(protocol.TypeRoomJoined, protocol.RoomJoinedPayload{
		Room:      tbl.Info(),
		SeatIndex: seat,
	}))
	s.hub.ToUser(playerID, protocol.MustEnvelope(protocol.TypeGameState, tbl.PrivateStateFor(playerID)))
}

func (s *Server) handleCancelMatch(c *hub.Client) {
	userID := c.UserID()
	if !s.match.Cancel(userID) {
		return
	}
	s.matchMu.Lock()
	buyIn := s.matchBuyIns[userID]
	delete(s.matchBuyIns, userID)
	s.matchMu.Unlock()
	if buyIn > 0 {
		s.refund(userID, buyIn)
	}
}

func (s *Server) handlePlayerAction(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.PlayerActionRequest](env)
	if err != nil {
		s.sendErr(c, "malformed", "malformed player_action request")
		return
	}
	action, err := engine.ParseAction(req.Action)
	if err != nil {
		s.sendErr(c, "invalid_action", err.Error())
		return
	}
	s.withTable(c, func(t *table.Table) error {
		return t.HandleAction(c.UserID(), action, req.Amount)
	})
}

func (s *Server) handleChat(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.ChatRequest](env)
	if err != nil || req.Message == "" {
		s.sendErr(c, "malformed", "malformed chat request")
		return
	}
	now := s.clock.Now()
	s.chatMu.Lock()
	last := s.lastChat[c.ID()]
	throttled := now.Sub(last) < chatInterval
	if !throttled {
		s.lastChat[c.ID()] = now
	}
	s.chatMu.Unlock()
	if throttled {
		s.sendErr(c, "rate_limited", "chat too fast")
		return
	}
	s.withTable(c, func(t *table.Table) error {
		t.Chat(c.UserID(), c.Name(), req.Message)
		return nil
	})
}

func (s *Server) handleBuyIn(c *hub.Client, env protocol.Envelope) {
	req, err := protocol.Payload[protocol.BuyInRequest](env)
	if err != nil || req.Amount <= 0 {
		s.sendErr(c, "malformed", "malformed buy_in request")
		return
	}
	if _, err := s.store.Debit(context.Background(), c.UserID(), req.Amount); err != nil {
		s.sendStoreErr(c, err)
		return
	}
	s.withTable(c, func(t *table.Table) error {
		if err := t.BuyIn(c.UserID(), req.Amount); err != nil {
			s.refund(c.UserID(), req.Amount)
			return err
		}
		return nil
	})
}

// withTable resolves the client's current table and reports the
// operation's error, if any, back on the connection.
func (s *Server) withTable(c *hub.Client, fn func(t *table.Table) error) {
	roomID := c.Room()
	if roomID == "" {
		s.sendErr(c, "not_in_room", "not in a room")
		return
	}
	tbl, err := s.registry.Get(roomID)
	if err != nil {
		s.sendTableErr(c, err)
		return
	}
	if err := fn(tbl); err != nil {
		s.sendTableErr(c, err)
	}
}

// refund returns chips the server debited but could not put in play.
func (s *Server) refund(userID string, chips int) {
	if _, err := s.store.Credit(context.Background(), userID, chips); err != nil {
		s.logger.Error("refund failed", "user", userID, "chips", chips, "error", err)
	}
}

func (s *Server) sendErr(c *hub.Client, code, message string) {
	c.Send(protocol.MustEnvelope(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

func (s *Server) sendStoreErr(c *hub.Client, err error) {
	code := "store_error"
	switch {
	case errors.Is(err, store.ErrInsufficientChips):
		code = "insufficient_chips"
	case errors.Is(err, store.ErrNotFound):
		code = "unknown_user"
	}
	s.sendErr(c, code, err.Error())
}

// sendTableErr maps registry, table, and engine rejections to stable
// wire codes.
func (s *Server) sendTableErr(c *hub.Client, err error) {
	code := "table_error"
	switch {
	case errors.Is(err, registry.ErrUnknownTable):
		code = "unknown_room"
	case errors.Is(err, registry.ErrWrongPassword):
		code = "wrong_password"
	case errors.Is(err, table.ErrTableFull):
		code = "table_full"
	case errors.Is(err, table.ErrAlreadySeated):
		code = "already_seated"
	case errors.Is(err, table.ErrNotSeated):
		code = "not_seated"
	case errors.Is(err, table.ErrBuyInOutOfRange):
		code = "buy_in_out_of_range"
	case errors.Is(err, table.ErrBuyInDuringHand):
		code = "buy_in_during_hand"
	case errors.Is(err, table.ErrTableTerminated):
		code = "table_terminated"
	case errors.Is(err, table.ErrNoHandInProgress):
		code = "no_hand"
	case errors.Is(err, engine.ErrNotYourTurn):
		code = "not_your_turn"
	case errors.Is(err, engine.ErrCannotCheck),
		errors.Is(err, engine.ErrNothingToCall),
		errors.Is(err, engine.ErrRaiseTooSmall),
		errors.Is(err, engine.ErrRaiseBarred),
		errors.Is(err, engine.ErrNotActive),
		errors.Is(err, engine.ErrInsufficientChips):
		code = "illegal_action"
	}
	s.sendErr(c, code, err.Error())
}
