package service

import (
	"context"
	"fmt"
	"log/slog"

	"strangers/internal/cache"
	"strangers/internal/model"
)

// CleanupService tears a user's session down on skip or connection loss
type CleanupService struct {
	queue cache.QueueCache
	rooms cache.RoomCache
	peers Notifier
	log   *slog.Logger
}

// NewCleanupService creates a new cleanup service. peers carries
// peer-disconnected events to the surviving members.
func NewCleanupService(queue cache.QueueCache, rooms cache.RoomCache, peers Notifier, log *slog.Logger) *CleanupService {
	return &CleanupService{
		queue: queue,
		rooms: rooms,
		peers: peers,
		log:   log.With("component", "cleanup"),
	}
}

// Skip dissolves name's session regardless of which connection it holds
func (s *CleanupService) Skip(ctx context.Context, reg Registry, name string) error {
	return s.Disconnect(ctx, reg, name, "")
}

// Disconnect runs the full cleanup for name: registry, queue, peer notice,
// room and reverse lookups. With a connID it only acts if that connection is
// still the live one, so a stale socket never tears down a newer session.
// The name stays reserved in reg until cleanup finishes.
func (s *CleanupService) Disconnect(ctx context.Context, reg Registry, name, connID string) error {
	release, ok := reg.Retire(name, connID)
	defer release()
	if connID != "" && !ok {
		return nil
	}

	if err := s.queue.Remove(ctx, name); err != nil {
		s.log.Error("Failed to remove user from queue", "user", name, "error", err)
		return fmt.Errorf("failed to remove %s from queue: %w", name, err)
	}

	code, err := s.rooms.RoomOf(ctx, name)
	if err != nil {
		s.log.Error("Failed to look up room", "user", name, "error", err)
		return fmt.Errorf("failed to look up room of %s: %w", name, err)
	}
	if code == "" {
		return nil // user was not in any room
	}

	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		s.log.Error("Failed to load room", "user", name, "room", code, "error", err)
		return fmt.Errorf("failed to load room %s: %w", code, err)
	}

	members := []string{name}
	if room != nil {
		for _, peer := range room.Peers(name) {
			s.peers.Notify(ctx, peer, model.NewPeerDisconnected(name))
			members = append(members, peer)
		}
	}

	if err := s.rooms.Dissolve(ctx, code, members...); err != nil {
		s.log.Error("Failed to dissolve room", "room", code, "error", err)
		return fmt.Errorf("failed to dissolve room %s: %w", code, err)
	}
	s.log.Info("Room dissolved", "room", code, "user", name)
	return nil
}

// Leave handles loss of a matching connection: the user drops out of the
// registry and the queue, and any room is left to the signaling side.
func (s *CleanupService) Leave(ctx context.Context, reg Registry, name, connID string) error {
	release, ok := reg.Retire(name, connID)
	defer release()
	if connID != "" && !ok {
		return nil
	}

	if err := s.queue.Remove(ctx, name); err != nil {
		s.log.Error("Failed to remove user from queue", "user", name, "error", err)
		return fmt.Errorf("failed to remove %s from queue: %w", name, err)
	}
	return nil
}
