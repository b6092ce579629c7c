package model

import "time"

// Role is the handshake role a member holds inside a room
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// DefaultRoomTTL is how long a room and its reverse lookups live without renewal
const DefaultRoomTTL = 300 * time.Second

// Room binds two matched users to their roles
type Room struct {
	Code    string          `json:"roomCode"`
	Members map[string]Role `json:"members"`
}

// Pair is two waiting entries popped together. The first popped is the initiator.
type Pair struct {
	Initiator WaitingEntry
	Responder WaitingEntry
}

// RoomCode is the deterministic room identifier for the pair
func (p Pair) RoomCode() string {
	return p.Initiator.Name + "_" + p.Responder.Name
}

// Peers returns every member other than name
func (r *Room) Peers(name string) []string {
	peers := make([]string, 0, len(r.Members))
	for member := range r.Members {
		if member != name {
			peers = append(peers, member)
		}
	}
	return peers
}

// Names returns every member of the room
func (r *Room) Names() []string {
	names := make([]string, 0, len(r.Members))
	for member := range r.Members {
		names = append(names, member)
	}
	return names
}
