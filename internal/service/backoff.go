package service

import "time"

// Backoff is the idle polling interval of the matchmaker. It grows
// geometrically while the queue is short and snaps back to Min on a match.
type Backoff struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64

	cur time.Duration
}

// Next returns the interval to sleep now and advances the schedule
func (b *Backoff) Next() time.Duration {
	if b.cur <= 0 {
		b.cur = b.Min
	}
	d := b.cur

	grown := time.Duration(float64(b.cur) * b.Multiplier)
	if grown > b.Max || grown <= 0 {
		grown = b.Max
	}
	if grown < b.Min {
		grown = b.Min
	}
	b.cur = grown
	return d
}

// Reset returns the schedule to Min
func (b *Backoff) Reset() {
	b.cur = b.Min
}
