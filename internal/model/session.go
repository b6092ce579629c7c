package model

import "time"

// WaitingEntry is a user sitting in the matching queue
type WaitingEntry struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"` // enqueue time, unix seconds
}

// ScoreAt converts an enqueue time into a queue score
func ScoreAt(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// RegisterStatus is the outcome of a registration request
type RegisterStatus string

const (
	StatusQueued RegisterStatus = "queued"
	StatusExists RegisterStatus = "exists"
	StatusError  RegisterStatus = "error"
)

// RegisterRequest is the body of POST /registerForMatching
type RegisterRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// RegisterResponse is returned by the registration endpoint
type RegisterResponse struct {
	Status  RegisterStatus `json:"status"`
	Message string         `json:"message"`
}

// SkipRequest is the body of POST /skip
type SkipRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}
