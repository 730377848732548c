package source

import (
	"math"
	"time"
)

// PacingClock computes how many frames are due at a given tick time.
//
// The first call to Due after Reset becomes the origin. A change of the rate
// moves the origin to the time of the change, keeping the emitted counter,
// so the new rate applies to the time elapsed since then.
type PacingClock struct {
	started     bool
	origin      time.Duration
	baseEmitted uint64
	rate        float64
	emitted     uint64
}

// Reset is called when the session (re)starts.
func (c *PacingClock) Reset() {
	*c = PacingClock{}
}

// StartAt sets the origin explicitly instead of waiting for the first Due.
func (c *PacingClock) StartAt(now time.Duration, rate float64) {
	c.started = true
	c.origin = now
	c.baseEmitted = c.emitted
	c.rate = rate
}

// Emitted is the amount of frames emitted since the last Reset.
func (c *PacingClock) Emitted() uint64 {
	return c.emitted
}

// MarkEmitted is called for every frame handed downstream.
func (c *PacingClock) MarkEmitted() {
	c.emitted++
}

// Due returns how many frames may be emitted at tick time now, but not more
// than maxPerTick (if positive). A non-positive rate allows one frame per tick.
func (c *PacingClock) Due(now time.Duration, rate float64, maxPerTick int) int {
	if !c.started || rate != c.rate {
		c.StartAt(now, rate)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 1
	}
	elapsed := now - c.origin
	if elapsed < 0 {
		return 0
	}
	ideal := c.baseEmitted + uint64(math.Floor(elapsed.Seconds()*rate+1e-9))
	if ideal <= c.emitted {
		return 0
	}
	due := ideal - c.emitted
	if maxPerTick > 0 && due > uint64(maxPerTick) {
		return maxPerTick
	}
	return int(due)
}
