// Package timer layers a hashed hierarchical timing wheel on top of any
// park/unpark-capable driver, so a bounded sleep or timeout can be
// expressed without every caller submitting its own kernel Timeout.
package timer

import "time"

// Clock tracks monotonic milliseconds since its own construction. The
// wheel indexes timers by this value rather than wall-clock time so a
// system clock adjustment never perturbs expiry ordering.
type Clock struct {
	start time.Time
}

// NewClock starts a clock at the current instant.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// NowMs returns milliseconds elapsed since the clock was constructed.
func (c *Clock) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}
