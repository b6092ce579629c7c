package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"strangers/internal/bus"
	"strangers/internal/cache"
	"strangers/internal/config"
	"strangers/internal/service"
	"strangers/internal/transport/rest"
	"strangers/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	SurfaceMatching  = "matching"
	SurfaceSignaling = "signaling"
)

// App wires both surfaces over one Redis client
type App struct {
	cfg *config.Config
	log *slog.Logger

	MatchingHub  *ws.Hub
	SignalingHub *ws.Hub
	Matchmaker   *service.Matchmaker

	// nil when the surface is disabled
	MatchingHandler  http.Handler
	SignalingHandler http.Handler

	buses []*bus.Bus
}

// New assembles caches, registries, services and routers from cfg
func New(cfg *config.Config, rdb *redis.Client, log *slog.Logger) *App {
	a := &App{
		cfg:          cfg,
		log:          log,
		MatchingHub:  ws.NewHub(SurfaceMatching, log),
		SignalingHub: ws.NewHub(SurfaceSignaling, log),
	}

	queue := cache.NewQueueCache(rdb, cfg.MatchQueue)
	rooms := cache.NewRoomCache(rdb, cfg.RoomTTL)

	matchingNotifier := a.notifier(rdb, SurfaceMatching, cfg.MatchingEnabled, a.MatchingHub)
	signalingNotifier := a.notifier(rdb, SurfaceSignaling, cfg.SignalingEnabled, a.SignalingHub)

	cleanup := service.NewCleanupService(queue, rooms, signalingNotifier, log)
	a.Matchmaker = service.NewMatchmaker(queue, rooms, matchingNotifier, cfg.Matchmaker(), log)

	wsOpts := ws.Options{
		SendBuffer:     cfg.SendBufferSize,
		MaxMessageSize: int64(cfg.MaxMessageBytes),
	}

	if cfg.MatchingEnabled {
		var signaling service.Registry = service.DetachedRegistry{}
		if cfg.SignalingEnabled {
			signaling = a.SignalingHub
		}
		a.MatchingHandler = rest.NewMatchingRouter(&rest.MatchingContainer{
			MatchService: service.NewMatchService(queue, log),
			Cleanup:      cleanup,
			Lobby:        service.NewLobby(a.MatchingHub, cleanup, log),
			Hub:          a.MatchingHub,
			Signaling:    signaling,
			WSOptions:    wsOpts,
			Log:          log,
		})
	}
	if cfg.SignalingEnabled {
		a.SignalingHandler = rest.NewSignalingRouter(&rest.SignalingContainer{
			Relay:     service.NewRelay(rooms, a.SignalingHub, cleanup, log),
			Hub:       a.SignalingHub,
			WSOptions: wsOpts,
			Log:       log,
		})
	}
	return a
}

// notifier picks how events reach users of a surface. Without the bus only
// local connections are reachable; with it a process that does not serve the
// surface still publishes to the ones that do.
func (a *App) notifier(rdb *redis.Client, surface string, served bool, hub *ws.Hub) service.Notifier {
	if !a.cfg.BusEnabled {
		if served {
			return service.LocalNotifier{Registry: hub}
		}
		return service.LocalNotifier{Registry: service.DetachedRegistry{}}
	}

	var b *bus.Bus
	if served {
		b = bus.New(rdb, surface, hub, a.log)
		a.buses = append(a.buses, b)
	} else {
		b = bus.New(rdb, surface, nil, a.log)
	}
	return b
}

// RunWorkers runs the matchmaker and the bus subscribers until ctx is cancelled
func (a *App) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range a.buses {
		g.Go(func() error {
			return b.Run(ctx)
		})
	}
	if a.cfg.MatchingEnabled {
		g.Go(func() error {
			return a.Matchmaker.Run(ctx)
		})
	}
	return g.Wait()
}

// Run serves every enabled surface and blocks until ctx is cancelled or a
// listener fails, then shuts the servers down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	var servers []*http.Server
	if a.MatchingHandler != nil {
		servers = append(servers, &http.Server{Addr: a.cfg.MatchingAddr(), Handler: a.MatchingHandler})
	}
	if a.SignalingHandler != nil {
		servers = append(servers, &http.Server{Addr: a.cfg.SignalingAddr(), Handler: a.SignalingHandler})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.RunWorkers(gctx)
	})
	for _, srv := range servers {
		g.Go(func() error {
			a.log.Info("Server starting", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
