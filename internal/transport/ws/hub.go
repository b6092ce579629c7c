package ws

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"strangers/internal/model"
)

var (
	ErrDuplicateConnection = errors.New("user already has a live connection")
	ErrConnectionRetiring  = errors.New("previous session is still being cleaned up")
	ErrNotConnected        = errors.New("user is not connected")
	ErrSendBufferFull      = errors.New("send buffer full")
)

// Connection represents a WebSocket connection owned by one user
type Connection struct {
	ID   string
	Name string
	Send chan []byte
}

// Hub is the per-process registry of live connections for one surface
// (matching or signaling). All state is guarded by mu.
type Hub struct {
	surface string
	conns   map[string]*Connection
	// names whose cleanup is still running; fresh registrations wait for release
	retiring map[string]struct{}

	mu  sync.RWMutex
	log *slog.Logger
}

// NewHub creates a new connection registry
func NewHub(surface string, log *slog.Logger) *Hub {
	return &Hub{
		surface:  surface,
		conns:    make(map[string]*Connection),
		retiring: make(map[string]struct{}),
		log:      log.With("surface", surface),
	}
}

// Surface names the socket this hub tracks
func (h *Hub) Surface() string {
	return h.surface
}

// Register adds a connection. It never displaces an existing one.
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.Name]; ok {
		h.log.Warn("Duplicate connection rejected", "user", conn.Name)
		return ErrDuplicateConnection
	}
	if _, ok := h.retiring[conn.Name]; ok {
		h.log.Warn("Connection rejected during cleanup", "user", conn.Name)
		return ErrConnectionRetiring
	}
	h.conns[conn.Name] = conn
	h.log.Info("User connected", "user", conn.Name, "conn", conn.ID)
	return nil
}

// Unregister removes a user's connection. Removing an absent name is a no-op.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(name)
}

// Retire removes the connection and reserves the name until release is called.
// With a non-empty connID only that exact connection is retired; ok reports
// whether anything was removed.
func (h *Hub) Retire(name, connID string) (release func(), ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, found := h.conns[name]
	if connID != "" && (!found || existing.ID != connID) {
		return func() {}, false
	}
	if _, busy := h.retiring[name]; busy {
		return func() {}, false
	}

	h.remove(name)
	h.retiring[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.retiring, name)
			h.mu.Unlock()
		})
	}, found
}

// remove must be called with mu held
func (h *Hub) remove(name string) {
	conn, ok := h.conns[name]
	if !ok {
		return
	}
	delete(h.conns, name)
	close(conn.Send)
	h.log.Info("User disconnected", "user", name, "conn", conn.ID)
}

// Send encodes event and queues it on the user's connection.
// It reports false when the event was not queued.
func (h *Hub) Send(name string, event any) bool {
	return h.Deliver(name, event) == nil
}

// Deliver is Send with the reason for a failure: ErrNotConnected or
// ErrSendBufferFull, or an encoding error.
func (h *Hub) Deliver(name string, event any) error {
	data, err := model.Encode(event)
	if err != nil {
		h.log.Error("Failed to encode event", "user", name, "error", err)
		return err
	}
	return h.enqueue(name, data)
}

// SendRaw queues already-encoded bytes on the user's connection
func (h *Hub) SendRaw(name string, data []byte) bool {
	return h.enqueue(name, data) == nil
}

func (h *Hub) enqueue(name string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.conns[name]
	if !ok {
		h.log.Debug("Connection not found", "user", name)
		return ErrNotConnected
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		// Drop message if buffer full
		h.log.Warn("Send buffer full, dropping message", "user", name)
		return ErrSendBufferFull
	}
}

// Connected reports whether name has a live connection here
func (h *Hub) Connected(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[name]
	return ok
}

// List returns a sorted snapshot of connected user names
func (h *Hub) List() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.conns))
	for name := range h.conns {
		names = append(names, name)
	}
	h.mu.RUnlock()

	sort.Strings(names)
	return names
}
