package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"strangers/internal/service"

	env "github.com/Netflix/go-env"
	"github.com/redis/go-redis/v9"
)

// Config is read from the environment on startup
type Config struct {
	RedisURI string `env:"REDIS_URI,default=redis://127.0.0.1:6379"`

	Host             string `env:"HOST,default=0.0.0.0"`
	MatchingEnabled  bool   `env:"MATCHING_ENABLED,default=true"`
	MatchingPort     int    `env:"MATCHING_PORT,default=8000"`
	SignalingEnabled bool   `env:"SIGNALING_ENABLED,default=true"`
	SignalingPort    int    `env:"SIGNALING_PORT,default=4000"`

	MatchQueue        string        `env:"MATCH_QUEUE,default=matching_queue"`
	RoomTTL           time.Duration `env:"ROOM_TTL,default=300s"`
	MinBackoff        time.Duration `env:"MIN_BACKOFF,default=10ms"`
	MaxBackoff        time.Duration `env:"MAX_BACKOFF,default=5s"`
	BackoffMultiplier float64       `env:"BACKOFF_MULTIPLIER,default=2"`
	MatchWorkers      int           `env:"MATCH_WORKERS,default=10"`
	MatchBuffer       int           `env:"MATCH_BUFFER,default=64"`
	RequeueOrphans    bool          `env:"REQUEUE_ORPHANS,default=false"`

	// BusEnabled routes notifications through Redis Pub/Sub so they reach
	// connections held by other processes
	BusEnabled bool `env:"BUS_ENABLED,default=true"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageBytes int           `env:"MAX_MESSAGE_BYTES,default=65536"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}

// Load reads and validates the configuration from the process environment
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if !c.MatchingEnabled && !c.SignalingEnabled {
		return errors.New("at least one of MATCHING_ENABLED or SIGNALING_ENABLED must be true")
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		return fmt.Errorf("invalid backoff window [%s, %s]", c.MinBackoff, c.MaxBackoff)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be >= 1, got %v", c.BackoffMultiplier)
	}
	if c.MatchWorkers <= 0 {
		return fmt.Errorf("MATCH_WORKERS must be positive, got %d", c.MatchWorkers)
	}
	if c.RoomTTL <= 0 {
		return fmt.Errorf("ROOM_TTL must be positive, got %s", c.RoomTTL)
	}
	return nil
}

// RedisOptions accepts either a redis:// URL or a bare host:port
func (c *Config) RedisOptions() (*redis.Options, error) {
	if strings.HasPrefix(c.RedisURI, "redis://") || strings.HasPrefix(c.RedisURI, "rediss://") {
		opts, err := redis.ParseURL(c.RedisURI)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URI: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURI}, nil
}

// Matchmaker returns the engine settings
func (c *Config) Matchmaker() service.MatchmakerConfig {
	return service.MatchmakerConfig{
		MinBackoff:        c.MinBackoff,
		MaxBackoff:        c.MaxBackoff,
		BackoffMultiplier: c.BackoffMultiplier,
		Workers:           c.MatchWorkers,
		Buffer:            c.MatchBuffer,
		RequeueOrphans:    c.RequeueOrphans,
	}
}

// MatchingAddr is the listen address of the matching surface
func (c *Config) MatchingAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MatchingPort)
}

// SignalingAddr is the listen address of the signaling surface
func (c *Config) SignalingAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.SignalingPort)
}
