package source

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacingFloor(t *testing.T) {
	for _, rate := range []float64{25, 30, 29.97, 7.5, 60} {
		var c PacingClock
		origin := 3 * time.Second
		var prev uint64
		for tickIdx := 0; tickIdx <= 1000; tickIdx++ {
			elapsed := time.Duration(tickIdx) * 10 * time.Millisecond
			due := c.Due(origin+elapsed, rate, 1)
			require.LessOrEqual(t, due, 1)
			for ; due > 0; due-- {
				c.MarkEmitted()
			}
			expected := uint64(math.Floor(elapsed.Seconds()*rate + 1e-9))
			require.Equal(t, expected, c.Emitted(), "rate %v, elapsed %v", rate, elapsed)
			require.GreaterOrEqual(t, c.Emitted(), prev)
			prev = c.Emitted()
		}
	}
}

func TestPacingStarvationCatchUp(t *testing.T) {
	var c PacingClock
	require.Equal(t, 0, c.Due(0, 25, 0))
	// nothing was emitted for a second: 25 frames are due at once if unlimited
	require.Equal(t, 25, c.Due(time.Second, 25, 0))
	require.Equal(t, 1, c.Due(time.Second, 25, 1))
	require.Equal(t, uint64(0), c.Emitted())
}

func TestPacingRateChange(t *testing.T) {
	var c PacingClock
	c.Due(0, 10, 0)
	for c.Due(time.Second, 10, 0) > 0 {
		c.MarkEmitted()
	}
	require.Equal(t, uint64(10), c.Emitted())

	// the new rate applies from the time of the change on
	require.Equal(t, 0, c.Due(time.Second, 20, 0))
	require.Equal(t, 10, c.Due(1500*time.Millisecond, 20, 0))
	require.Equal(t, uint64(10), c.Emitted())
}

func TestPacingNonPositiveRate(t *testing.T) {
	var c PacingClock
	for _, rate := range []float64{0, -5, math.NaN()} {
		require.Equal(t, 1, c.Due(time.Hour, rate, 0))
	}
	c.Reset()
	require.Equal(t, uint64(0), c.Emitted())
}

func TestPacingStartAt(t *testing.T) {
	var c PacingClock
	c.StartAt(0, 25)
	require.Equal(t, 1, c.Due(40*time.Millisecond, 25, 0))
}
