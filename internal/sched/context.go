package sched

import "sync/atomic"

// Waker is a callback that moves a suspended task (or timer entry) back
// onto the ready queue. It may be invoked from the driver's completion
// dispatch loop, from the timer wheel's cascade, or from a cross-thread
// Unpark; invoking it more than once must be safe and idempotent as far
// as the task is concerned (re-enqueuing an already-runnable task is a
// no-op).
type Waker struct {
	wake   func()
	called atomic.Bool
}

// NewWaker builds a Waker around a wake callback.
func NewWaker(wake func()) *Waker { return &Waker{wake: wake} }

// Wake invokes the callback. Safe to call from any goroutine; the
// runtime itself is single-threaded, but wakers are frequently handed to
// cross-thread producers (an eventfd writer, a timer, an external
// canceller).
func (w *Waker) Wake() {
	if w == nil || w.wake == nil {
		return
	}
	w.wake()
}

// WakeOnce invokes the callback at most once, regardless of how many
// times WakeOnce is called. Used where a single completion can race
// against a cancellation.
func (w *Waker) WakeOnce() {
	if w == nil || w.wake == nil {
		return
	}
	if w.called.CompareAndSwap(false, true) {
		w.wake()
	}
}

// Context is threaded through every Poll call. It currently carries only
// the waker, the minimal surface a suspended future needs to register
// for a later wakeup; a richer context (deadlines, cancellation tokens)
// would extend this struct rather than change the Future interface.
type Context struct {
	waker *Waker
}

// NewContext builds a poll context around a waker.
func NewContext(waker *Waker) *Context { return &Context{waker: waker} }

// Waker returns the context's waker.
func (cx *Context) Waker() *Waker { return cx.waker }
