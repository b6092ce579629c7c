package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanup_Disconnect_Dissolves_Room_And_Notifies_Peer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	code := env.createRoom(t, "alice", "bob")
	alice := connect(t, env.signaling, "alice")
	bob := connect(t, env.signaling, "bob")

	req.NoError(cleanup.Disconnect(ctx, env.signaling, "bob", bob.ID))

	event := receive(t, alice)
	req.Equal("peer-disconnected", event["event"])
	req.Equal("bob has disconnected", event["message"])
	req.False(env.signaling.Connected("bob"))

	room, err := env.rooms.Get(ctx, code)
	req.NoError(err)
	req.Nil(room)
	for _, name := range []string{"alice", "bob"} {
		got, err := env.rooms.RoomOf(ctx, name)
		req.NoError(err)
		req.Empty(got)
	}
}

func TestCleanup_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	env.createRoom(t, "alice", "bob")
	alice := connect(t, env.signaling, "alice")

	req.NoError(cleanup.Skip(ctx, env.signaling, "bob"))
	req.Equal("peer-disconnected", receive(t, alice)["event"])

	req.NoError(cleanup.Skip(ctx, env.signaling, "bob"))
	requireSilent(t, alice)
}

func TestCleanup_Disconnect_Removes_From_Queue(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	_, err := env.queue.Enqueue(ctx, "alice", time.Now())
	req.NoError(err)

	req.NoError(cleanup.Skip(ctx, DetachedRegistry{}, "alice"))

	ok, err := env.queue.Contains(ctx, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestCleanup_Stale_Connection_Leaves_New_Session_Alone(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	code := env.createRoom(t, "alice", "bob")
	connect(t, env.signaling, "bob")

	req.NoError(cleanup.Disconnect(ctx, env.signaling, "bob", "some-older-conn"))

	req.True(env.signaling.Connected("bob"))
	room, err := env.rooms.Get(ctx, code)
	req.NoError(err)
	req.NotNil(room)
}

func TestCleanup_Leave_Keeps_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	code := env.createRoom(t, "alice", "bob")
	alice := connect(t, env.matching, "alice")
	_, err := env.queue.Enqueue(ctx, "alice", time.Now())
	req.NoError(err)

	req.NoError(cleanup.Leave(ctx, env.matching, "alice", alice.ID))

	req.False(env.matching.Connected("alice"))
	ok, err := env.queue.Contains(ctx, "alice")
	req.NoError(err)
	req.False(ok)
	room, err := env.rooms.Get(ctx, code)
	req.NoError(err)
	req.NotNil(room)
}

func TestCleanup_Store_Failure_Is_Returned(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	cleanup := NewCleanupService(env.queue, env.rooms, LocalNotifier{Registry: env.signaling}, env.log)
	env.mr.SetError("ERR store unavailable")

	err := cleanup.Skip(context.Background(), env.signaling, "alice")

	req.Error(err)
	req.Contains(err.Error(), "failed to remove alice from queue")
}
