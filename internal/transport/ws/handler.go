package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins, CORS is open on both surfaces
	},
}

// Session is the per-connection protocol driven by the read pump
type Session interface {
	Handle(ctx context.Context, data []byte)
	// Close runs once after the transport is gone
	Close(ctx context.Context)
}

// SessionFactory builds the protocol session for a freshly registered connection
type SessionFactory func(conn *Connection) Session

// Options tunes per-connection limits
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Handler upgrades GET /ws/{name} and runs a Session on the connection
type Handler struct {
	hub        *Hub
	param      string
	newSession SessionFactory
	opts       Options
	log        *slog.Logger
}

// NewHandler creates a new WebSocket handler. param is the mux route variable holding the user name.
func NewHandler(hub *Hub, param string, newSession SessionFactory, opts Options, log *slog.Logger) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		hub:        hub,
		param:      param,
		newSession: newSession,
		opts:       opts,
		log:        log.With("surface", hub.Surface()),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)[h.param]
	if name == "" {
		http.Error(w, "missing user name", http.StatusBadRequest)
		return
	}
	if h.hub.Connected(name) {
		h.log.Warn("Duplicate connection rejected before upgrade", "user", name)
		http.Error(w, ErrDuplicateConnection.Error(), http.StatusConflict)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade error", "user", name, "error", err)
		return
	}

	conn := &Connection{
		ID:   uuid.NewString(),
		Name: name,
		Send: make(chan []byte, h.opts.SendBuffer),
	}

	if err := h.hub.Register(conn); err != nil {
		// Lost a race with another dial or the name is mid-cleanup.
		// The first connection keeps the name; this one never owned a session.
		writeClose(wsConn, websocket.ClosePolicyViolation, err.Error())
		_ = wsConn.Close()
		return
	}

	session := h.newSession(conn)
	go h.writePump(wsConn, conn)
	h.readPump(context.WithoutCancel(r.Context()), wsConn, conn, session)
}

func (h *Handler) readPump(ctx context.Context, wsConn *websocket.Conn, conn *Connection, session Session) {
	defer func() {
		session.Close(ctx)
		// No-op when the session already retired this connection
		release, _ := h.hub.Retire(conn.Name, conn.ID)
		release()
		wsConn.Close()
	}()

	wsConn.SetReadLimit(h.opts.MaxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("WebSocket error", "user", conn.Name, "error", err)
			}
			break
		}
		session.Handle(ctx, data)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
