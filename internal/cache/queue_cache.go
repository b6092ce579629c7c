package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"strangers/internal/model"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the sorted set holding waiting users
const DefaultQueueKey = "matching_queue"

// popPairScript pops the two earliest entries only when both exist, so a
// concurrent consumer can never leave us holding a single half-pair.
var popPairScript = redis.NewScript(`
if redis.call('ZCARD', KEYS[1]) < 2 then
	return {}
end
return redis.call('ZPOPMIN', KEYS[1], 2)
`)

// QueueCache handles Redis ZSET operations for the waiting queue
type QueueCache interface {
	// Enqueue adds name scored by at. It reports false if name is already queued.
	Enqueue(ctx context.Context, name string, at time.Time) (bool, error)
	// Requeue puts a popped entry back with its original score
	Requeue(ctx context.Context, entry model.WaitingEntry) error
	Remove(ctx context.Context, name string) error
	Size(ctx context.Context) (int64, error)
	Contains(ctx context.Context, name string) (bool, error)
	// PopPair atomically removes the two lowest-score entries. Nil when fewer than two wait.
	PopPair(ctx context.Context) (*model.Pair, error)
}

type queueCache struct {
	client *redis.Client
	key    string
}

// NewQueueCache creates a new queue cache backed by the sorted set at key
func NewQueueCache(client *redis.Client, key string) QueueCache {
	if key == "" {
		key = DefaultQueueKey
	}
	return &queueCache{
		client: client,
		key:    key,
	}
}

func (c *queueCache) Enqueue(ctx context.Context, name string, at time.Time) (bool, error) {
	added, err := c.client.ZAddNX(ctx, c.key, redis.Z{
		Score:  model.ScoreAt(at),
		Member: name,
	}).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (c *queueCache) Requeue(ctx context.Context, entry model.WaitingEntry) error {
	return c.client.ZAddNX(ctx, c.key, redis.Z{
		Score:  entry.Score,
		Member: entry.Name,
	}).Err()
}

func (c *queueCache) Remove(ctx context.Context, name string) error {
	return c.client.ZRem(ctx, c.key, name).Err()
}

func (c *queueCache) Size(ctx context.Context) (int64, error) {
	return c.client.ZCard(ctx, c.key).Result()
}

func (c *queueCache) Contains(ctx context.Context, name string) (bool, error) {
	_, err := c.client.ZScore(ctx, c.key, name).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *queueCache) PopPair(ctx context.Context) (*model.Pair, error) {
	flat, err := popPairScript.Run(ctx, c.client, []string{c.key}).StringSlice()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(flat) < 4 {
		return nil, nil
	}

	first, err := parseEntry(flat[0], flat[1])
	if err != nil {
		return nil, err
	}
	second, err := parseEntry(flat[2], flat[3])
	if err != nil {
		return nil, err
	}
	return &model.Pair{Initiator: first, Responder: second}, nil
}

func parseEntry(member, score string) (model.WaitingEntry, error) {
	s, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return model.WaitingEntry{}, fmt.Errorf("bad score %q for %s: %w", score, member, err)
	}
	return model.WaitingEntry{Name: member, Score: s}, nil
}
