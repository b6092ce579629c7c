package rest

import (
	"log/slog"
	"net/http"

	"strangers/internal/service"
	"strangers/internal/transport/rest/handler"
	"strangers/internal/transport/ws"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// MatchingContainer holds the dependencies of the matching surface
type MatchingContainer struct {
	MatchService *service.MatchService
	Cleanup      *service.CleanupService
	Lobby        *service.Lobby
	Hub          *ws.Hub
	// Signaling is the registry a skip retires; a DetachedRegistry when this
	// process does not serve the signaling surface
	Signaling service.Registry
	WSOptions ws.Options
	Log       *slog.Logger
}

// SignalingContainer holds the dependencies of the signaling surface
type SignalingContainer struct {
	Relay     *service.Relay
	Hub       *ws.Hub
	WSOptions ws.Options
	Log       *slog.Logger
}

// NewMatchingRouter creates the matching surface router
func NewMatchingRouter(c *MatchingContainer) http.Handler {
	r := mux.NewRouter()

	status := handler.NewStatusHandler("This is matching server, connect to /ws/{name}", c.Hub)
	matching := handler.NewMatchingHandler(c.MatchService, c.Cleanup, c.Signaling, c.Log)
	wsHandler := ws.NewHandler(c.Hub, "name", func(conn *ws.Connection) ws.Session {
		return c.Lobby.NewSession(conn.Name, conn.ID)
	}, c.WSOptions, c.Log)

	r.HandleFunc("/", status.Root).Methods("GET")
	r.HandleFunc("/health", status.Health).Methods("GET")
	r.HandleFunc("/connections", status.Connections).Methods("GET")
	r.HandleFunc("/registerForMatching", matching.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/skip", matching.Skip).Methods("POST", "OPTIONS")
	r.Handle("/ws/{name}", wsHandler).Methods("GET")

	return withCORS(r)
}

// NewSignalingRouter creates the signaling surface router
func NewSignalingRouter(c *SignalingContainer) http.Handler {
	r := mux.NewRouter()

	status := handler.NewStatusHandler("This is signalling server, connect to /ws/{username}", c.Hub)
	wsHandler := ws.NewHandler(c.Hub, "username", func(conn *ws.Connection) ws.Session {
		return c.Relay.NewSession(conn.Name, conn.ID)
	}, c.WSOptions, c.Log)

	r.HandleFunc("/", status.Root).Methods("GET")
	r.HandleFunc("/health", status.Health).Methods("GET")
	r.HandleFunc("/connections", status.Connections).Methods("GET")
	r.Handle("/ws/{username}", wsHandler).Methods("GET")

	return withCORS(r)
}

func withCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(h)
}
