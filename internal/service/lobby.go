package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"strangers/internal/model"
)

// Lobby runs the matching socket: it carries "matched" notices to the user
// and relays text chat between matched users.
type Lobby struct {
	registry Registry
	cleanup  *CleanupService
	log      *slog.Logger
	now      func() time.Time
}

// NewLobby creates a new lobby
func NewLobby(registry Registry, cleanup *CleanupService, log *slog.Logger) *Lobby {
	return &Lobby{
		registry: registry,
		cleanup:  cleanup,
		log:      log.With("component", "lobby"),
		now:      time.Now,
	}
}

// NewSession binds a matching connection
func (l *Lobby) NewSession(name, connID string) *LobbySession {
	return &LobbySession{lobby: l, name: name, connID: connID}
}

// LobbySession is one user's matching connection
type LobbySession struct {
	lobby  *Lobby
	name   string
	connID string
}

// Handle relays chat messages to their peer and ignores every other event
func (s *LobbySession) Handle(_ context.Context, data []byte) {
	var msg model.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.lobby.log.Warn("Invalid JSON", "user", s.name, "error", err)
		return
	}
	if msg.Event != model.EventChat {
		return
	}

	req := model.ChatRequest{Peer: msg.Peer, Message: msg.Message}
	if err := model.Validate(req); err != nil {
		s.lobby.registry.Send(s.name, model.NewError(err.Error()))
		return
	}
	if !s.lobby.registry.Send(req.Peer, model.NewChat(s.name, req.Message, s.lobby.now())) {
		s.lobby.log.Debug("Chat peer not connected", "user", s.name, "peer", req.Peer)
		return
	}
	s.lobby.log.Debug("Chat relayed", "user", s.name, "peer", req.Peer)
}

// Close drops the user from the registry and the waiting queue
func (s *LobbySession) Close(ctx context.Context) {
	if err := s.lobby.cleanup.Leave(ctx, s.lobby.registry, s.name, s.connID); err != nil {
		s.lobby.log.Error("Cleanup failed", "user", s.name, "error", err)
	}
}
