package service

import (
	"context"

	"strangers/internal/transport/ws"
)

// Registry is the per-process connection registry of one surface
type Registry interface {
	Send(name string, event any) bool
	// Deliver is Send reporting why the event was not queued
	Deliver(name string, event any) error
	// Retire removes a live connection and holds the name until release is called
	Retire(name, connID string) (release func(), ok bool)
}

// Notifier delivers an event to a user wherever their live connection is held.
// Delivery is best-effort; false means the event is known to have been dropped.
type Notifier interface {
	Notify(ctx context.Context, name string, event any) bool
}

// LocalNotifier delivers through this process's registry only
type LocalNotifier struct {
	Registry Registry
}

// Notify sends through the registry; false when name is not connected here
func (n LocalNotifier) Notify(_ context.Context, name string, event any) bool {
	return n.Registry.Send(name, event)
}

// DetachedRegistry stands in for a surface this process does not serve
type DetachedRegistry struct{}

// Send always reports the user as unreachable
func (DetachedRegistry) Send(string, any) bool { return false }

// Deliver always fails with ws.ErrNotConnected
func (DetachedRegistry) Deliver(string, any) error { return ws.ErrNotConnected }

// Retire has nothing to remove
func (DetachedRegistry) Retire(string, string) (func(), bool) { return func() {}, false }
