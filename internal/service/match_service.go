package service

import (
	"context"
	"log/slog"
	"time"

	"strangers/internal/cache"
	"strangers/internal/model"
)

// MatchService handles registration into the waiting queue
type MatchService struct {
	queue cache.QueueCache
	log   *slog.Logger
	now   func() time.Time
}

// NewMatchService creates a new match service
func NewMatchService(queue cache.QueueCache, log *slog.Logger) *MatchService {
	return &MatchService{
		queue: queue,
		log:   log,
		now:   time.Now,
	}
}

// Register queues name for pairing. A user already waiting is reported as
// exists and left untouched; a store failure leaves the queue unchanged.
func (s *MatchService) Register(ctx context.Context, name string) model.RegisterResponse {
	added, err := s.queue.Enqueue(ctx, name, s.now())
	if err != nil {
		s.log.Error("Error registering user", "user", name, "error", err)
		return model.RegisterResponse{
			Status:  model.StatusError,
			Message: ErrInternal.Error(),
		}
	}
	if !added {
		return model.RegisterResponse{
			Status:  model.StatusExists,
			Message: "Username already exists in queue",
		}
	}

	s.log.Info("Added user to the matching queue", "user", name)
	return model.RegisterResponse{
		Status:  model.StatusQueued,
		Message: "User added to matching queue",
	}
}
