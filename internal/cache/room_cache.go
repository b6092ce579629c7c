package cache

import (
	"context"
	"fmt"
	"time"

	"strangers/internal/model"

	"github.com/redis/go-redis/v9"
)

// RoomCache handles Redis operations for room membership and reverse lookups
type RoomCache interface {
	// Create writes the room hash and both reverse lookups in one transaction
	Create(ctx context.Context, pair model.Pair) (*model.Room, error)
	// Get returns nil when the room is absent or expired
	Get(ctx context.Context, code string) (*model.Room, error)
	// Roles returns one role per name, empty for non-members or a missing room
	Roles(ctx context.Context, code string, names ...string) ([]model.Role, error)
	// RoomOf returns the room a user currently belongs to, or ""
	RoomOf(ctx context.Context, name string) (string, error)
	// Dissolve deletes the room and the reverse lookup of every given name
	Dissolve(ctx context.Context, code string, names ...string) error
}

type roomCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoomCache creates a new room cache. Rooms are never renewed and vanish after ttl.
func NewRoomCache(client *redis.Client, ttl time.Duration) RoomCache {
	if ttl <= 0 {
		ttl = model.DefaultRoomTTL
	}
	return &roomCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *roomCache) key(code string) string {
	return fmt.Sprintf("room:%s", code)
}

func (c *roomCache) userKey(name string) string {
	return fmt.Sprintf("user_room:%s", name)
}

func (c *roomCache) Create(ctx context.Context, pair model.Pair) (*model.Room, error) {
	code := pair.RoomCode()
	room := &model.Room{
		Code: code,
		Members: map[string]model.Role{
			pair.Initiator.Name: model.RoleInitiator,
			pair.Responder.Name: model.RoleResponder,
		},
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key(code),
			pair.Initiator.Name, string(model.RoleInitiator),
			pair.Responder.Name, string(model.RoleResponder),
		)
		pipe.Expire(ctx, c.key(code), c.ttl)
		pipe.Set(ctx, c.userKey(pair.Initiator.Name), code, c.ttl)
		pipe.Set(ctx, c.userKey(pair.Responder.Name), code, c.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store room %s: %w", code, err)
	}
	return room, nil
}

func (c *roomCache) Get(ctx context.Context, code string) (*model.Room, error) {
	data, err := c.client.HGetAll(ctx, c.key(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	room := &model.Room{
		Code:    code,
		Members: make(map[string]model.Role, len(data)),
	}
	for name, role := range data {
		room.Members[name] = model.Role(role)
	}
	return room, nil
}

func (c *roomCache) Roles(ctx context.Context, code string, names ...string) ([]model.Role, error) {
	roles := make([]model.Role, len(names))
	if len(names) == 0 {
		return roles, nil
	}
	vals, err := c.client.HMGet(ctx, c.key(code), names...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			roles[i] = model.Role(s)
		}
	}
	return roles, nil
}

func (c *roomCache) RoomOf(ctx context.Context, name string) (string, error) {
	code, err := c.client.Get(ctx, c.userKey(name)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return code, err
}

func (c *roomCache) Dissolve(ctx context.Context, code string, names ...string) error {
	keys := make([]string, 0, len(names)+1)
	keys = append(keys, c.key(code))
	for _, name := range names {
		keys = append(keys, c.userKey(name))
	}
	return c.client.Del(ctx, keys...).Err()
}
