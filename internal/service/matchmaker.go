package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"strangers/internal/cache"
	"strangers/internal/model"
)

// MatchmakerConfig tunes the pairing loop
type MatchmakerConfig struct {
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Workers bounds concurrent room writes and notifications
	Workers int
	// Buffer is the capacity of the hand-off between the loop and the workers
	Buffer int
	// RequeueOrphans re-queues the reachable user when its partner is known to be gone
	RequeueOrphans bool
}

// DefaultMatchmakerConfig mirrors the production defaults
func DefaultMatchmakerConfig() MatchmakerConfig {
	return MatchmakerConfig{
		MinBackoff:        10 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
		Workers:           10,
		Buffer:            64,
	}
}

// Matchmaker drains pairs from the waiting queue, creates their room and
// tells both users. One loop per process; notification runs on a worker pool.
type Matchmaker struct {
	queue    cache.QueueCache
	rooms    cache.RoomCache
	notifier Notifier
	cfg      MatchmakerConfig
	log      *slog.Logger

	pairs chan model.Pair
}

// NewMatchmaker creates a new matchmaker
func NewMatchmaker(queue cache.QueueCache, rooms cache.RoomCache, notifier Notifier, cfg MatchmakerConfig, log *slog.Logger) *Matchmaker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	return &Matchmaker{
		queue:    queue,
		rooms:    rooms,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With("component", "matchmaker"),
		pairs:    make(chan model.Pair, cfg.Buffer),
	}
}

// Run blocks until ctx is cancelled. Pairs already handed to workers are
// finished before it returns.
func (m *Matchmaker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	workCtx := context.WithoutCancel(ctx)
	for i := 0; i < m.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range m.pairs {
				m.handlePair(workCtx, pair)
			}
		}()
	}

	m.log.Info("Matchmaker started", "workers", m.cfg.Workers)
	m.loop(ctx)

	close(m.pairs)
	wg.Wait()
	m.log.Info("Matchmaker stopped")
	return nil
}

func (m *Matchmaker) loop(ctx context.Context) {
	backoff := &Backoff{
		Min:        m.cfg.MinBackoff,
		Max:        m.cfg.MaxBackoff,
		Multiplier: m.cfg.BackoffMultiplier,
	}
	for {
		if ctx.Err() != nil {
			return
		}

		pair, err := m.next(ctx)
		if err != nil && ctx.Err() == nil {
			m.log.Error("Failed to poll matching queue", "error", err)
		}
		if pair == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff.Next()):
			}
			continue
		}

		backoff.Reset()
		select {
		case m.pairs <- *pair:
		case <-ctx.Done():
			// Shutting down with a popped pair: put both back rather than lose them
			m.requeue(context.WithoutCancel(ctx), pair.Initiator, pair.Responder)
			return
		}
	}
}

// next pops a pair when at least two users wait
func (m *Matchmaker) next(ctx context.Context) (*model.Pair, error) {
	size, err := m.queue.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size < 2 {
		return nil, nil
	}
	return m.queue.PopPair(ctx)
}

func (m *Matchmaker) handlePair(ctx context.Context, pair model.Pair) {
	room, err := m.rooms.Create(ctx, pair)
	if err != nil {
		m.log.Error("Failed to create room", "room", pair.RoomCode(), "error", err)
		m.requeue(ctx, pair.Initiator, pair.Responder)
		return
	}

	initiator, responder := pair.Initiator.Name, pair.Responder.Name
	toInitiator := m.notifier.Notify(ctx, initiator, model.NewMatched(room.Code, true))
	toResponder := m.notifier.Notify(ctx, responder, model.NewMatched(room.Code, false))
	m.log.Info("Matched users", "initiator", initiator, "responder", responder, "room", room.Code)

	if !m.cfg.RequeueOrphans || toInitiator == toResponder {
		return
	}

	orphan, survivor := pair.Initiator, pair.Responder
	if toInitiator {
		orphan, survivor = pair.Responder, pair.Initiator
	}
	m.log.Warn("Matched user unreachable, re-queueing partner", "unreachable", orphan.Name, "user", survivor.Name, "room", room.Code)
	if err := m.rooms.Dissolve(ctx, room.Code, initiator, responder); err != nil {
		m.log.Error("Failed to dissolve orphaned room", "room", room.Code, "error", err)
		return
	}
	m.requeue(ctx, survivor)
}

func (m *Matchmaker) requeue(ctx context.Context, entries ...model.WaitingEntry) {
	for _, e := range entries {
		if err := m.queue.Requeue(ctx, e); err != nil {
			m.log.Error("Failed to re-queue user", "user", e.Name, "error", err)
		}
	}
}
