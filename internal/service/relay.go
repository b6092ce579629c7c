package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"strangers/internal/cache"
	"strangers/internal/model"
	"strangers/internal/transport/ws"
)

// SessionState is where a signaling connection is in its handshake
type SessionState int

const (
	StateConnected SessionState = iota
	StateAwaitingJoin
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateAwaitingJoin:
		return "AWAITING_JOIN"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Relay verifies room membership and forwards handshake payloads between
// peers connected to this process's signaling hub.
type Relay struct {
	rooms    cache.RoomCache
	registry Registry
	cleanup  *CleanupService
	log      *slog.Logger
}

// NewRelay creates a new signaling relay
func NewRelay(rooms cache.RoomCache, registry Registry, cleanup *CleanupService, log *slog.Logger) *Relay {
	return &Relay{
		rooms:    rooms,
		registry: registry,
		cleanup:  cleanup,
		log:      log.With("component", "relay"),
	}
}

// NewSession starts the state machine for a connection that was just
// registered, so it moves straight from CONNECTED to AWAITING_JOIN.
func (r *Relay) NewSession(name, connID string) *RelaySession {
	return &RelaySession{
		relay:  r,
		name:   name,
		connID: connID,
		state:  StateAwaitingJoin,
	}
}

// RelaySession is the per-connection handshake state
type RelaySession struct {
	relay  *Relay
	name   string
	connID string

	mu       sync.Mutex
	state    SessionState
	roomCode string
	peer     string
	role     model.Role
}

// State returns the current state
func (s *RelaySession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle processes one inbound message. Problems are reported to the sender
// as error events; the connection is never closed here.
func (s *RelaySession) Handle(ctx context.Context, data []byte) {
	var msg model.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.relay.log.Warn("Invalid JSON", "user", s.name, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	switch msg.Event {
	case model.EventJoin:
		s.join(ctx, model.JoinRequest{RoomCode: msg.RoomCode, Target: msg.Target, Type: msg.Type})
	case model.EventSignal:
		s.signal(ctx, model.SignalRequest{RoomCode: msg.RoomCode, Target: msg.Target, Type: msg.Type, Data: msg.Data})
	default:
		s.reply(model.NewError(ErrUnknownEvent.Error()))
	}
}

// join must be called with mu held
func (s *RelaySession) join(ctx context.Context, req model.JoinRequest) {
	if err := model.Validate(req); err != nil {
		s.reply(model.NewError(err.Error()))
		return
	}
	if req.Target == s.name {
		s.reply(model.NewError(ErrInvalidRoom.Error()))
		return
	}

	roles, err := s.relay.rooms.Roles(ctx, req.RoomCode, s.name, req.Target)
	if err != nil {
		s.relay.log.Error("Failed to verify room", "user", s.name, "room", req.RoomCode, "error", err)
		s.reply(model.NewError(ErrInternal.Error()))
		return
	}
	if roles[0] == "" || roles[1] == "" {
		s.reply(model.NewError(ErrInvalidRoom.Error()))
		return
	}

	s.state = StateActive
	s.roomCode = req.RoomCode
	s.peer = req.Target
	s.role = roles[0]
	s.relay.log.Info("User verified", "user", s.name, "room", req.RoomCode, "role", s.role)
	s.reply(model.NewVerified(req.RoomCode, s.role))
}

// signal must be called with mu held. Membership is checked against the store
// on every signal, so an expired or dissolved room stops the relay.
func (s *RelaySession) signal(ctx context.Context, req model.SignalRequest) {
	if err := model.Validate(req); err != nil {
		s.reply(model.NewError(err.Error()))
		return
	}
	if s.state != StateActive {
		s.reply(model.NewError(ErrJoinRequired.Error()))
		return
	}
	if req.RoomCode != s.roomCode || req.Target != s.peer {
		s.reply(model.NewError(ErrInvalidRoom.Error()))
		return
	}

	roles, err := s.relay.rooms.Roles(ctx, req.RoomCode, s.name, req.Target)
	if err != nil {
		s.relay.log.Error("Failed to verify room", "user", s.name, "room", req.RoomCode, "error", err)
		s.reply(model.NewError(ErrInternal.Error()))
		return
	}
	if roles[0] != s.role || roles[1] == "" {
		s.relay.log.Info("Room no longer valid", "user", s.name, "room", req.RoomCode)
		s.state = StateAwaitingJoin
		s.roomCode, s.peer, s.role = "", "", ""
		s.reply(model.NewError(ErrInvalidRoom.Error()))
		return
	}

	err = s.relay.registry.Deliver(req.Target, model.NewSignal(req.RoomCode, s.name, req.Type, req.Data))
	switch {
	case errors.Is(err, ws.ErrSendBufferFull):
		s.relay.log.Warn("Signal dropped, peer is backlogged", "user", s.name, "peer", req.Target)
		s.reply(model.NewError(ErrPeerBacklogged.Error()))
	case err != nil:
		s.reply(model.NewError(ErrPeerNotConnected.Error()))
	}
}

func (s *RelaySession) reply(event any) {
	s.relay.registry.Send(s.name, event)
}

// Close runs the cleanup workflow, then marks the session closed
func (s *RelaySession) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	if err := s.relay.cleanup.Disconnect(ctx, s.relay.registry, s.name, s.connID); err != nil {
		s.relay.log.Error("Cleanup failed", "user", s.name, "error", err)
	}
	s.state = StateClosed
}
