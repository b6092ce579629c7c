package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// EventType is the "event" discriminator carried by every message on both sockets
type EventType string

// Matching socket events
const (
	EventMatched EventType = "matched"
	EventChat    EventType = "chat"
)

// Signaling socket events
const (
	EventJoin             EventType = "join"
	EventSignal           EventType = "signal"
	EventVerified         EventType = "verified"
	EventError            EventType = "error"
	EventPeerDisconnected EventType = "peer-disconnected"
)

// Encoder is implemented by events that need exact control over their wire bytes
type Encoder interface {
	Encode() ([]byte, error)
}

// Encode renders an event the way it is written to a socket
func Encode(event any) ([]byte, error) {
	if enc, ok := event.(Encoder); ok {
		return enc.Encode()
	}
	return json.Marshal(event)
}

// ClientMessage is the superset of everything a client may send on either socket
type ClientMessage struct {
	Event    EventType       `json:"event"`
	RoomCode string          `json:"room_code,omitempty"`
	Target   string          `json:"target,omitempty"`
	Type     string          `json:"type,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Peer     string          `json:"peer,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// JoinRequest is the validated form of a join message
type JoinRequest struct {
	RoomCode string `json:"room_code" validate:"required"`
	Target   string `json:"target" validate:"required"`
	Type     string `json:"type" validate:"omitempty,oneof=offer answer candidate"`
}

// SignalRequest is the validated form of a signal message
type SignalRequest struct {
	RoomCode string          `json:"room_code" validate:"required"`
	Target   string          `json:"target" validate:"required"`
	Type     string          `json:"type" validate:"required,oneof=offer answer candidate"`
	Data     json.RawMessage `json:"data"`
}

// ChatRequest is the validated form of a chat message
type ChatRequest struct {
	Peer    string `json:"peer" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// MatchedEvent tells a user which room they were paired into and whether they start the handshake
type MatchedEvent struct {
	Event     EventType `json:"event"`
	RoomCode  string    `json:"room_code"`
	Initiator bool      `json:"initiator"`
}

// NewMatched builds the matched notice for one side of a pair
func NewMatched(roomCode string, initiator bool) MatchedEvent {
	return MatchedEvent{Event: EventMatched, RoomCode: roomCode, Initiator: initiator}
}

// ChatEvent is a text message relayed on the matching socket
type ChatEvent struct {
	Event     EventType `json:"event"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp float64   `json:"timestamp"`
}

// NewChat stamps a relayed chat message with its send time
func NewChat(sender, message string, at time.Time) ChatEvent {
	return ChatEvent{Event: EventChat, Sender: sender, Message: message, Timestamp: ScoreAt(at)}
}

// VerifiedEvent confirms a successful join and carries the sender's role
type VerifiedEvent struct {
	Event    EventType `json:"event"`
	RoomCode string    `json:"room_code"`
	Role     Role      `json:"role"`
}

// NewVerified builds the join confirmation
func NewVerified(roomCode string, role Role) VerifiedEvent {
	return VerifiedEvent{Event: EventVerified, RoomCode: roomCode, Role: role}
}

// ErrorEvent reports a rejected message; the connection stays open
type ErrorEvent struct {
	Event   EventType `json:"event"`
	Message string    `json:"message"`
}

// NewError builds an error event with a client-facing message
func NewError(message string) ErrorEvent {
	return ErrorEvent{Event: EventError, Message: message}
}

// PeerDisconnectedEvent tells the surviving member that the room is gone
type PeerDisconnectedEvent struct {
	Event   EventType `json:"event"`
	Message string    `json:"message"`
}

// NewPeerDisconnected names the member who left
func NewPeerDisconnected(name string) PeerDisconnectedEvent {
	return PeerDisconnectedEvent{Event: EventPeerDisconnected, Message: name + " has disconnected"}
}

// SignalEvent is a handshake payload forwarded to the target peer.
// Data is written out exactly as it was received.
type SignalEvent struct {
	Event    EventType       `json:"event"`
	RoomCode string          `json:"room_code"`
	From     string          `json:"from"`
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// NewSignal wraps a handshake payload for forwarding
func NewSignal(roomCode, from, signalType string, data json.RawMessage) SignalEvent {
	return SignalEvent{Event: EventSignal, RoomCode: roomCode, From: from, Type: signalType, Data: data}
}

// Encode splices Data in verbatim; json.Marshal would compact and HTML-escape it.
func (e SignalEvent) Encode() ([]byte, error) {
	head, err := json.Marshal(struct {
		Event    EventType `json:"event"`
		RoomCode string    `json:"room_code"`
		From     string    `json:"from"`
		Type     string    `json:"type"`
	}{e.Event, e.RoomCode, e.From, e.Type})
	if err != nil {
		return nil, err
	}

	data := e.Data
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage("null")
	}

	var buf bytes.Buffer
	buf.Grow(len(head) + len(data) + 9)
	buf.Write(head[:len(head)-1])
	buf.WriteString(`,"data":`)
	buf.Write(data)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
