package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_Grows_Geometrically_Up_To_Max(t *testing.T) {
	req := require.New(t)
	b := &Backoff{Min: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2}

	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, b.Next())
	}

	req.Equal([]time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}, got)
}

func TestBackoff_Reset(t *testing.T) {
	req := require.New(t)
	b := &Backoff{Min: time.Millisecond, Max: time.Second, Multiplier: 3}
	b.Next()
	b.Next()

	b.Reset()

	req.Equal(time.Millisecond, b.Next())
}

func TestBackoff_Multiplier_One_Is_Constant(t *testing.T) {
	req := require.New(t)
	b := &Backoff{Min: 5 * time.Millisecond, Max: time.Second, Multiplier: 1}

	req.Equal(5*time.Millisecond, b.Next())
	req.Equal(5*time.Millisecond, b.Next())
}
