package op

import "sync"

// CancelHandle is the opaque, cloneable handle op_canceller() hands out.
// It can be carried across an await point (stashed in a struct a task
// holds onto) and used later, from the same runtime thread, to request
// cancellation of the op it was taken from without needing a reference
// to the Op[T] itself (which may have a type parameter the holder
// doesn't want to propagate).
type CancelHandle struct {
	c *cancelCore
}

// Canceller is the observing side of the CancelHandle/Canceller pair
// that NewCanceller builds for external cooperative cancellation: it
// reports through Cancelled whether the handle has requested
// cancellation, and cannot trigger it itself.
type Canceller struct {
	c *cancelCore
}

type cancelCore struct {
	mu        sync.Mutex
	requested bool
	cancelFn  func() error
}

// NewCanceller builds a fresh Canceller/CancelHandle pair. cancelFn is
// invoked at most once, the first time Cancel is called on the handle
// (or on any copy of it).
func NewCanceller(cancelFn func() error) (*Canceller, CancelHandle) {
	core := &cancelCore{cancelFn: cancelFn}
	return &Canceller{c: core}, CancelHandle{c: core}
}

// Cancelled reports whether cancellation has been requested, without
// triggering it. An op poll loop uses this to short-circuit before its
// next suspension point.
func (c *Canceller) Cancelled() bool {
	c.c.mu.Lock()
	defer c.c.mu.Unlock()
	return c.c.requested
}

// Cancel requests cancellation of the associated op, invoking the
// kernel AsyncCancel submission at most once even if called from
// multiple places.
func (h CancelHandle) Cancel() error {
	h.c.mu.Lock()
	if h.c.requested {
		h.c.mu.Unlock()
		return nil
	}
	h.c.requested = true
	fn := h.c.cancelFn
	h.c.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// Canceled reports whether this handle's op has had cancellation
// requested, so a poll loop can check it without forcing cancellation.
func (h CancelHandle) Canceled() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.requested
}
