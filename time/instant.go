package time

import "github.com/behrlich/ioruntime/internal/timer"

// Instant is a monotonic timestamp anchored to a runtime's timer clock,
// usable for measuring elapsed durations without exposure to wall-clock
// adjustments.
type Instant struct {
	clock *timer.Clock
	ms    int64
}

// Now captures the current instant on clock. A Handle's underlying
// *timer.TimerDriver does not expose its Clock, and the Builder always
// creates its own, so callers construct their own timer.Clock for
// Instant.Now; its readings are comparable only with Instants built from
// that same Clock, not with the runtime's wheel.
func Now(clock *timer.Clock) Instant {
	return Instant{clock: clock, ms: clock.NowMs()}
}

// Elapsed returns the duration since i, evaluated against i's own clock.
func (i Instant) Elapsed() (ms int64) {
	return i.clock.NowMs() - i.ms
}

// Sub returns the duration between two instants sharing the same clock,
// in milliseconds.
func (i Instant) Sub(earlier Instant) int64 {
	return i.ms - earlier.ms
}
