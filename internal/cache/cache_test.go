package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"strangers/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestQueueCache_Enqueue_Rejects_Duplicate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, client := newTestClient(t)
	queue := NewQueueCache(client, "")
	now := time.Unix(1_700_000_000, 0)

	// Given alice is queued
	added, err := queue.Enqueue(ctx, "alice", now)
	req.NoError(err)
	req.True(added)

	// When alice registers again later
	added, err = queue.Enqueue(ctx, "alice", now.Add(time.Second))

	// Then nothing changes
	req.NoError(err)
	req.False(added)
	members, err := mr.ZMembers(DefaultQueueKey)
	req.NoError(err)
	req.Equal([]string{"alice"}, members)
	score, err := mr.ZScore(DefaultQueueKey, "alice")
	req.NoError(err)
	req.Equal(float64(1_700_000_000), score)
}

func TestQueueCache_PopPair_Is_Fifo(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewQueueCache(client, "q")
	base := time.Unix(1_700_000_000, 0)

	// Given three users registered in the order alice, bob, carol
	// And inserted out of order
	arrivals := []struct {
		name   string
		offset time.Duration
	}{
		{"carol", 3 * time.Second},
		{"alice", 1 * time.Second},
		{"bob", 2 * time.Second},
	}
	for _, a := range arrivals {
		_, err := queue.Enqueue(ctx, a.name, base.Add(a.offset))
		req.NoError(err)
	}

	pair, err := queue.PopPair(ctx)
	req.NoError(err)
	req.NotNil(pair)
	req.Equal("alice", pair.Initiator.Name)
	req.Equal("bob", pair.Responder.Name)
	req.Equal("alice_bob", pair.RoomCode())
	req.Equal(float64(1_700_000_001), pair.Initiator.Score)

	size, err := queue.Size(ctx)
	req.NoError(err)
	req.Equal(int64(1), size)
}

func TestQueueCache_PopPair_Leaves_Single_Entry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewQueueCache(client, "q")

	// Given only one user waits
	_, err := queue.Enqueue(ctx, "alice", time.Now())
	req.NoError(err)

	// When a pair is requested
	pair, err := queue.PopPair(ctx)

	// Then nothing is popped and alice is not lost
	req.NoError(err)
	req.Nil(pair)
	ok, err := queue.Contains(ctx, "alice")
	req.NoError(err)
	req.True(ok)
}

func TestQueueCache_Requeue_Keeps_Original_Priority(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewQueueCache(client, "q")
	base := time.Unix(1_700_000_000, 0)

	_, err := queue.Enqueue(ctx, "bob", base.Add(5*time.Second))
	req.NoError(err)
	req.NoError(queue.Requeue(ctx, model.WaitingEntry{Name: "alice", Score: model.ScoreAt(base)}))

	pair, err := queue.PopPair(ctx)
	req.NoError(err)
	req.NotNil(pair)
	req.Equal("alice", pair.Initiator.Name)
}

func TestQueueCache_Remove_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewQueueCache(client, "q")

	_, err := queue.Enqueue(ctx, "alice", time.Now())
	req.NoError(err)
	req.NoError(queue.Remove(ctx, "alice"))
	req.NoError(queue.Remove(ctx, "alice"))

	ok, err := queue.Contains(ctx, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestRoomCache_Create_Stores_Roles_And_Lookups(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, client := newTestClient(t)
	rooms := NewRoomCache(client, 0)
	pair := model.Pair{
		Initiator: model.WaitingEntry{Name: "alice"},
		Responder: model.WaitingEntry{Name: "bob"},
	}

	room, err := rooms.Create(ctx, pair)
	req.NoError(err)
	req.Equal("alice_bob", room.Code)

	req.Equal("initiator", mr.HGet("room:alice_bob", "alice"))
	req.Equal("responder", mr.HGet("room:alice_bob", "bob"))
	req.Equal(model.DefaultRoomTTL, mr.TTL("room:alice_bob"))
	req.Equal(model.DefaultRoomTTL, mr.TTL("user_room:alice"))
	req.Equal(model.DefaultRoomTTL, mr.TTL("user_room:bob"))

	code, err := rooms.RoomOf(ctx, "bob")
	req.NoError(err)
	req.Equal("alice_bob", code)

	got, err := rooms.Get(ctx, "alice_bob")
	req.NoError(err)
	req.Equal(room.Members, got.Members)

	roles, err := rooms.Roles(ctx, "alice_bob", "bob", "mallory")
	req.NoError(err)
	req.Equal([]model.Role{model.RoleResponder, ""}, roles)
}

func TestRoomCache_Room_Expires_Without_Renewal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, client := newTestClient(t)
	rooms := NewRoomCache(client, time.Minute)
	pair := model.Pair{
		Initiator: model.WaitingEntry{Name: "alice"},
		Responder: model.WaitingEntry{Name: "bob"},
	}
	_, err := rooms.Create(ctx, pair)
	req.NoError(err)

	// When the ttl elapses
	mr.FastForward(time.Minute + time.Second)

	// Then the room and lookups are gone
	room, err := rooms.Get(ctx, "alice_bob")
	req.NoError(err)
	req.Nil(room)
	roles, err := rooms.Roles(ctx, "alice_bob", "alice", "bob")
	req.NoError(err)
	req.Equal([]model.Role{"", ""}, roles)
	code, err := rooms.RoomOf(ctx, "alice")
	req.NoError(err)
	req.Empty(code)
}

func TestRoomCache_Dissolve_Removes_Everything(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mr, client := newTestClient(t)
	rooms := NewRoomCache(client, 0)
	pair := model.Pair{
		Initiator: model.WaitingEntry{Name: "alice"},
		Responder: model.WaitingEntry{Name: "bob"},
	}
	_, err := rooms.Create(ctx, pair)
	req.NoError(err)

	req.NoError(rooms.Dissolve(ctx, "alice_bob", "alice", "bob"))

	req.False(mr.Exists("room:alice_bob"))
	req.False(mr.Exists("user_room:alice"))
	req.False(mr.Exists("user_room:bob"))

	// Dissolving again is harmless
	req.NoError(rooms.Dissolve(ctx, "alice_bob", "alice", "bob"))
}

func TestQueueCache_PopPair_Concurrent_Consumers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewQueueCache(client, "")
	base := time.Unix(1_700_000_000, 0)

	// Given 2000 users queued one millisecond apart
	const users = 2000
	for i := 0; i < users; i++ {
		added, err := queue.Enqueue(ctx, fmt.Sprintf("user-%04d", i), base.Add(time.Duration(i)*time.Millisecond))
		req.NoError(err)
		req.True(added)
	}

	// When 8 consumers drain it at once
	var (
		mu    sync.Mutex
		pairs []model.Pair
		g     errgroup.Group
	)
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for {
				pair, err := queue.PopPair(ctx)
				if err != nil {
					return err
				}
				if pair == nil {
					return nil
				}
				mu.Lock()
				pairs = append(pairs, *pair)
				mu.Unlock()
			}
		})
	}
	req.NoError(g.Wait())

	// Then every user came out exactly once, paired with its neighbour in arrival order
	req.Len(pairs, users/2)
	seen := make(map[string]int, users)
	for _, p := range pairs {
		seen[p.Initiator.Name]++
		seen[p.Responder.Name]++

		var i, j int
		_, err := fmt.Sscanf(p.Initiator.Name, "user-%04d", &i)
		req.NoError(err)
		_, err = fmt.Sscanf(p.Responder.Name, "user-%04d", &j)
		req.NoError(err)
		req.Zero(i%2, "initiator %s", p.Initiator.Name)
		req.Equal(i+1, j)
		req.Less(p.Initiator.Score, p.Responder.Score)
	}
	req.Len(seen, users)
	for name, n := range seen {
		req.Equal(1, n, name)
	}

	size, err := queue.Size(ctx)
	req.NoError(err)
	req.Zero(size)
}
