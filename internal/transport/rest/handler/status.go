package handler

import "net/http"

// Lister exposes the names held by a connection registry
type Lister interface {
	List() []string
}

// StatusHandler serves the informational endpoints shared by both surfaces
type StatusHandler struct {
	banner string
	conns  Lister
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(banner string, conns Lister) *StatusHandler {
	return &StatusHandler{banner: banner, conns: conns}
}

// Root handles GET /
func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": h.banner})
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Connections handles GET /connections
func (h *StatusHandler) Connections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"connections": h.conns.List()})
}
