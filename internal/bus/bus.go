package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"strangers/internal/model"

	"github.com/redis/go-redis/v9"
)

// Local is the slice of a connection registry the bus delivers into
type Local interface {
	Send(name string, event any) bool
	SendRaw(name string, data []byte) bool
}

// envelope carries an encoded event across processes. Event is kept as a
// string so its bytes survive the trip untouched.
type envelope struct {
	To    string `json:"to"`
	Event string `json:"event"`
}

// Bus routes events to whichever process holds the user's connection on one
// surface. Every process subscribes to deliver:<surface> and hands messages
// to its local registry; users not connected locally are silently skipped.
type Bus struct {
	client  *redis.Client
	channel string
	local   Local
	log     *slog.Logger

	// set while Run holds a confirmed subscription
	subscribed atomic.Bool
}

// Channel is the Pub/Sub channel for a surface
func Channel(surface string) string {
	return "deliver:" + surface
}

// New creates a new bus for surface. local may be nil in a process that only
// publishes to a surface it does not serve.
func New(client *redis.Client, surface string, local Local, log *slog.Logger) *Bus {
	return &Bus{
		client:  client,
		channel: Channel(surface),
		local:   local,
		log:     log.With("component", "bus", "surface", surface),
	}
}

// Notify delivers locally when possible and publishes otherwise.
// It reports false when no other process is subscribed to the surface; our
// own subscription is not counted since local delivery already failed.
func (b *Bus) Notify(ctx context.Context, name string, event any) bool {
	if b.local != nil && b.local.Send(name, event) {
		return true
	}

	data, err := model.Encode(event)
	if err != nil {
		b.log.Error("Failed to encode event", "user", name, "error", err)
		return false
	}
	payload, err := json.Marshal(envelope{To: name, Event: string(data)})
	if err != nil {
		b.log.Error("Failed to encode envelope", "user", name, "error", err)
		return false
	}

	receivers, err := b.client.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		b.log.Error("Failed to publish event", "user", name, "error", err)
		return false
	}
	if b.subscribed.Load() {
		receivers--
	}
	return receivers > 0
}

// Run consumes deliveries addressed to this surface until ctx is cancelled
func (b *Bus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	b.subscribed.Store(true)
	defer b.subscribed.Store(false)
	b.log.Info("Bus subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *Bus) deliver(payload string) {
	if b.local == nil {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("Dropping malformed delivery", "error", err)
		return
	}
	if env.To == "" {
		return
	}
	b.local.SendRaw(env.To, []byte(env.Event))
}
