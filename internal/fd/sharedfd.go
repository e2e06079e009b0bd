// Package fd implements SharedFd, the reference-counted file descriptor
// wrapper every op and every buffer-owning future closes over. A raw fd
// cannot be closed while a completion-based op still holds a reference
// to it without racing the kernel's in-flight writes to user buffers, so
// SharedFd defers the actual close until the last clone lets go.
package fd

import (
	"sync"
	"sync/atomic"

	"github.com/behrlich/ioruntime/internal/sched"
)

// CloseResult is what a close submission hands back: nil on a
// successful kernel close, or the kernel's errno translated to a Go
// error.
type CloseResult struct {
	Err error
}

// CloseSubmitter is the minimal surface SharedFd needs to submit a
// kernel close op. internal/op's real submission path implements this;
// SharedFd is defined in terms of the interface rather than a concrete
// op type to avoid fd depending on op (op depends on sqe/uring, and a
// direct fd->op edge would invert the natural layering where op
// eventually builds ops that operate on SharedFd-held descriptors).
type CloseSubmitter interface {
	SubmitClose(rawFd int) sched.Future[CloseResult]
}

type state int32

const (
	stateInit    state = iota // no pending close; at least one clone live
	stateWaiting              // a close() awaiter is waiting for the last clone to drop
	stateClosing              // a close op is in flight for this fd
	stateClosed               // kernel confirmed the close (or it was forced)
)

// core is the reference-counted state shared by every clone of a given
// SharedFd.
type core struct {
	raw       int32
	refs      atomic.Int32
	mu        sync.Mutex
	st        state
	waiter    *sched.Waker        // set by Waiting; woken by the dropping last clone
	closeOp   sched.Future[CloseResult]
	submitter CloseSubmitter
}

// SharedFd is a cheaply cloneable handle onto a raw file descriptor.
// The zero value is not usable; construct with New.
type SharedFd struct {
	c        *core
	consumed bool // true after Close or TryUnwrap has taken ownership from this handle
}

// New wraps rawFd in a SharedFd with a single live reference. submitter
// is used to issue the eventual kernel close; it may be nil for
// fds that are never meant to be closed through the op path (tests,
// already-duped fds) as long as Close is never called on them.
func New(rawFd int, submitter CloseSubmitter) SharedFd {
	c := &core{raw: int32(rawFd), st: stateInit, submitter: submitter}
	c.refs.Store(1)
	return SharedFd{c: c}
}

// RawFd returns the underlying descriptor. Valid until Close succeeds.
func (f SharedFd) RawFd() int { return int(f.c.raw) }

// Clone returns a new handle sharing the same underlying descriptor,
// bumping the reference count. Each clone must eventually be released via
// Close or DropClone; SharedFd has no finalizer of its own, so a clone
// that is simply discarded keeps the count up and the fd is never closed.
func (f SharedFd) Clone() SharedFd {
	f.c.refs.Add(1)
	return SharedFd{c: f.c}
}

// TryUnwrap returns the raw fd and true if this handle is the sole
// remaining reference, consuming the handle; otherwise it returns false
// and the SharedFd is unchanged so the caller may still Close it.
func (f *SharedFd) TryUnwrap() (int, bool) {
	if f.consumed {
		return -1, false
	}
	if !f.c.refs.CompareAndSwap(1, 0) {
		return -1, false
	}
	f.consumed = true
	return int(f.c.raw), true
}

// Close consumes this handle. If it is the sole owner, it submits a
// close op directly and polls it to completion via the driving future
// returned here. If other clones are still live, it marks the shared
// core Waiting and returns a future that completes once the last clone
// drops and the resulting close op finishes.
//
// Close must only be called once per handle; calling it again, or using
// the handle afterward, is a programming error the caller is expected to
// avoid exactly as with os.File.
func (f *SharedFd) Close() sched.Future[error] {
	f.consumed = true
	c := f.c

	c.mu.Lock()
	remaining := c.refs.Add(-1)
	if remaining == 0 {
		c.st = stateClosing
		if c.submitter != nil {
			c.closeOp = c.submitter.SubmitClose(int(c.raw))
		}
		c.mu.Unlock()
		return &closeFuture{c: c}
	}

	// Other clones remain; park in Waiting and let the last clone to
	// drop perform the actual submission.
	c.st = stateWaiting
	c.mu.Unlock()
	return &closeFuture{c: c}
}

// closeFuture drives a SharedFd through Waiting (if applicable) and
// Closing to Closed.
type closeFuture struct {
	c *core
}

func (cf *closeFuture) Poll(cx *sched.Context) sched.PollResult[error] {
	cf.c.mu.Lock()

	switch cf.c.st {
	case stateWaiting:
		cf.c.waiter = cx.Waker()
		cf.c.mu.Unlock()
		return sched.Pending[error]()

	case stateClosing:
		op := cf.c.closeOp
		cf.c.mu.Unlock()
		if op == nil {
			// No CloseSubmitter was configured, so no close op exists;
			// fall back to an unprotected close.
			return sched.Ready[error](forceClose(int(cf.c.raw)))
		}
		result := op.Poll(cx)
		if !result.Done() {
			return sched.Pending[error]()
		}
		cf.c.mu.Lock()
		cf.c.st = stateClosed
		cf.c.mu.Unlock()
		return sched.Ready(result.Value().Err)

	case stateClosed:
		cf.c.mu.Unlock()
		return sched.Ready[error](nil)

	default: // stateInit: should not be reachable once Close has been called
		cf.c.mu.Unlock()
		return sched.Pending[error]()
	}
}

// release is called by the last surviving clone of a core that is
// already Waiting, to perform the deferred close submission and wake
// the original awaiter.
func release(c *core) {
	c.mu.Lock()
	if c.st != stateWaiting {
		c.mu.Unlock()
		return
	}
	c.st = stateClosing
	var op sched.Future[CloseResult]
	if c.submitter != nil {
		op = c.submitter.SubmitClose(int(c.raw))
	}
	c.closeOp = op
	waiter := c.waiter
	c.waiter = nil
	c.mu.Unlock()
	waiter.WakeOnce()
}

// DropClone releases a clone obtained via Clone without closing the
// underlying fd through it; used when a clone outlives its purpose (an
// in-flight op finishing) but ownership of the eventual close belongs to
// the original handle. If this was the last reference and the core is
// Waiting, it triggers the deferred close submission.
func DropClone(f SharedFd) {
	if f.c.refs.Add(-1) == 0 {
		release(f.c)
	}
}
