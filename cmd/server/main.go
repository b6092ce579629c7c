package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strangers/internal/app"
	"strangers/internal/config"

	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis connection
	opts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer func() {
		log.Info("Closing Redis client...")
		_ = rdb.Close()
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis at %s: %w", opts.Addr, err)
	}
	log.Info("Connected to Redis", "address", opts.Addr)

	a := app.New(cfg, rdb, log)
	log.Info("Surfaces configured",
		"matching", cfg.MatchingEnabled,
		"signaling", cfg.SignalingEnabled,
		"bus", cfg.BusEnabled,
	)
	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("Server exited")
	return nil
}
