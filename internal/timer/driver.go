package timer

import "github.com/behrlich/ioruntime/internal/sched"

// Driver is the minimal shape TimerDriver wraps, declared here (rather
// than importing internal/uring) for the same reason op.Submitter and
// fd.CloseSubmitter are declared by their own consumers: it keeps the
// dependency edge pointing from timer toward its driver, never back.
type Driver interface {
	Park() error
	ParkTimeout(nanos int64) error
}

// TimerDriver wraps an inner Driver with a hashed hierarchical wheel,
// intercepting ParkTimeout to bound the inner park by whichever is
// sooner: the caller's requested timeout or the wheel's next deadline.
// Because it itself implements Driver (Park/ParkTimeout), a
// TimerDriver can be handed to the scheduler exactly like an
// undecorated uring.Driver.
type TimerDriver struct {
	inner Driver
	clock *Clock
	wheel *Wheel
}

// NewTimerDriver wraps inner with a fresh wheel anchored to clock.
func NewTimerDriver(inner Driver, clock *Clock, obs Observer) *TimerDriver {
	return &TimerDriver{inner: inner, clock: clock, wheel: NewWheel(clock, obs)}
}

// Register arms a timer expiring nanos from now, returning a Key usable with
// Cancel. The deadline is computed against the shared clock so it lines
// up with the wheel's own notion of "now".
func (t *TimerDriver) Register(nanos int64, waker *sched.Waker) Key {
	deadlineMs := t.clock.NowMs() + nanos/1_000_000
	return t.wheel.Register(deadlineMs, waker)
}

// Cancel removes a previously registered timer.
func (t *TimerDriver) Cancel(key Key) {
	t.wheel.Cancel(key)
}

// Park implements Driver by delegating straight to the inner driver,
// then advancing the wheel to the current instant in case something
// else (an I/O completion) woke the thread up while a timer was also
// close to firing.
func (t *TimerDriver) Park() error {
	if err := t.inner.Park(); err != nil {
		return err
	}
	t.wheel.Advance(t.clock.NowMs())
	return nil
}

// ParkTimeout implements Driver: it computes min(nanos,
// time_to_next_timer) before delegating to the inner park, then
// advances the wheel and fires anything now due.
func (t *TimerDriver) ParkTimeout(nanos int64) error {
	bound := nanos
	if deadlineMs, ok := t.wheel.NextDeadlineMs(); ok {
		toNext := (deadlineMs - t.clock.NowMs()) * 1_000_000
		if toNext <= 0 {
			// A timer already due still bounds the park: wait the
			// shortest positive duration instead of falling through to
			// the unbounded Park below.
			toNext = 1
		}
		if bound <= 0 || toNext < bound {
			bound = toNext
		}
	}

	var err error
	if bound <= 0 {
		err = t.inner.Park()
	} else {
		err = t.inner.ParkTimeout(bound)
	}
	t.wheel.Advance(t.clock.NowMs())
	return err
}
