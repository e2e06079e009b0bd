// Package time exposes timer-wheel-backed Sleep and Timeout futures, the
// public counterpart of internal/timer. Every entry point here takes an
// explicit Handle rather than reading from hidden per-thread state: a
// Runtime is not a goroutine-affine concept in Go the way it is in the
// model this package's API is shaped after, so the caller threads its
// own Runtime through instead of relying on thread-local lookup.
package time

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/timer"
	"github.com/behrlich/ioruntime/ioerr"
)

// Driver is the subset of *timer.TimerDriver that Sleep/Timeout need.
type Driver interface {
	Register(nanos int64, waker *sched.Waker) timer.Key
	Cancel(key timer.Key)
}

// Handle binds time operations to one runtime's timer wheel. Builder.Build
// only wires a *timer.TimerDriver when EnableTimer/EnableAll was called;
// constructing a Handle over a runtime that didn't enable timers is a
// caller error, surfaced the first time Sleep or Timeout is polled.
type Handle struct {
	driver Driver
}

// NewHandle wraps a timer driver. Passing nil is valid; it defers the
// "timers not enabled" error until the first Sleep/Timeout poll instead
// of panicking here.
func NewHandle(driver Driver) Handle {
	// Runtime.TimerDriver returns a nil *timer.TimerDriver when timers
	// are disabled; normalize it so Poll sees a nil Driver.
	if td, ok := driver.(*timer.TimerDriver); ok && td == nil {
		driver = nil
	}
	return Handle{driver: driver}
}

// Sleep returns a future that resolves once d has elapsed on h's wheel.
// It registers no timer until first polled, so constructing a Sleep and
// never awaiting it costs nothing.
func (h Handle) Sleep(d time.Duration) sched.Future[struct{}] {
	return &sleepFuture{driver: h.driver, nanos: d.Nanoseconds()}
}

type sleepFuture struct {
	driver Driver
	nanos  int64

	armed bool
	key   timer.Key
	fired atomic.Bool // set from inside the waker callback when the wheel actually fires
	done  bool
}

func (s *sleepFuture) Poll(cx *sched.Context) sched.PollResult[struct{}] {
	if s.done {
		return sched.Ready(struct{}{})
	}
	if s.driver == nil {
		panic(ioerr.New("sleep", ioerr.CodeInvalidArgument, "timers not enabled on this runtime"))
	}
	if !s.armed {
		waker := cx.Waker()
		s.key = s.driver.Register(s.nanos, sched.NewWaker(func() {
			s.fired.Store(true)
			waker.WakeOnce()
		}))
		s.armed = true
		runtime.SetFinalizer(s, finalizeSleep)
		return sched.Pending[struct{}]()
	}
	if !s.fired.Load() {
		// Re-polled for some other reason (e.g. BlockOn's own pre-park
		// poll) before the wheel has actually fired this timer.
		return sched.Pending[struct{}]()
	}
	s.done = true
	runtime.SetFinalizer(s, nil)
	return sched.Ready(struct{}{})
}

// Cancel abandons an armed sleep early, letting it implement the
// top-level Cancellable interface so a Sleep used as the loser in a
// Select is torn out of the wheel instead of left to fire unobserved.
func (s *sleepFuture) Cancel() error {
	if s.done || !s.armed || s.driver == nil {
		return nil
	}
	s.driver.Cancel(s.key)
	s.done = true
	runtime.SetFinalizer(s, nil)
	return nil
}

func finalizeSleep(s *sleepFuture) {
	if s.done || s.driver == nil {
		return
	}
	s.driver.Cancel(s.key)
}
