package service

import "errors"

// Peer-facing failures. Their messages are sent verbatim in error events.
var (
	ErrInvalidRoom      = errors.New("Invalid room or role")
	ErrPeerNotConnected = errors.New("Peer not connected")
	ErrPeerBacklogged   = errors.New("Peer is not keeping up, signal dropped")
	ErrJoinRequired     = errors.New("Join a room before signaling")
	ErrUnknownEvent     = errors.New("Unknown event")
	ErrInternal         = errors.New("Internal server error")
)
