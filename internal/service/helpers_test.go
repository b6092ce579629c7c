package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"strangers/internal/cache"
	"strangers/internal/model"
	"strangers/internal/transport/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	mr        *miniredis.Miniredis
	queue     cache.QueueCache
	rooms     cache.RoomCache
	matching  *ws.Hub
	signaling *ws.Hub
	log       *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.DiscardHandler)
	return &testEnv{
		mr:        mr,
		queue:     cache.NewQueueCache(client, ""),
		rooms:     cache.NewRoomCache(client, 0),
		matching:  ws.NewHub("matching", log),
		signaling: ws.NewHub("signaling", log),
		log:       log,
	}
}

// connect registers name on hub and returns its outbound channel
func connect(t *testing.T, hub *ws.Hub, name string) *ws.Connection {
	t.Helper()
	conn := &ws.Connection{ID: name + "-conn", Name: name, Send: make(chan []byte, 16)}
	require.NoError(t, hub.Register(conn))
	return conn
}

// createRoom stores the room for initiator and responder
func (e *testEnv) createRoom(t *testing.T, initiator, responder string) string {
	t.Helper()
	room, err := e.rooms.Create(context.Background(), model.Pair{
		Initiator: model.WaitingEntry{Name: initiator},
		Responder: model.WaitingEntry{Name: responder},
	})
	require.NoError(t, err)
	return room.Code
}

func receive(t *testing.T, conn *ws.Connection) map[string]any {
	t.Helper()
	raw := receiveRaw(t, conn)
	var event map[string]any
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func receiveRaw(t *testing.T, conn *ws.Connection) []byte {
	t.Helper()
	select {
	case raw, ok := <-conn.Send:
		require.True(t, ok, "connection closed")
		return raw
	case <-time.After(time.Second):
		t.Fatalf("no event for %s", conn.Name)
		return nil
	}
}

func requireSilent(t *testing.T, conn *ws.Connection) {
	t.Helper()
	select {
	case raw, ok := <-conn.Send:
		if ok {
			t.Fatalf("unexpected event for %s: %s", conn.Name, raw)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
