package chaintime

import (
	"sync"
	"time"
)

var now = time.Now

// Clock supplies the current time to the protocol. Nothing is ever polled:
// operations read the clock once when they are invoked.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

func (SystemClock) Now() Timestamp {
	return FromTime(now())
}

// ManualClock is a settable clock for tests and offline replays.
type ManualClock struct {
	mu sync.Mutex
	t  Timestamp
}

// NewManualClock returns a ManualClock starting at t.
func NewManualClock(t Timestamp) *ManualClock {
	return &ManualClock{t: t}
}

func (c *ManualClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *ManualClock) Set(t Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d Seconds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t += Timestamp(d)
}
