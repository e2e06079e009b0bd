package op

import (
	"syscall"

	"github.com/behrlich/ioruntime/internal/fd"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/ioerr"
)

// RingCloseSubmitter wires a Registry/Submitter pair into fd.CloseSubmitter,
// so a SharedFd's deferred close submits a real kernel Close op through the
// same slot/slab machinery every other op uses, rather than calling
// syscall.Close directly once the last clone drops.
type RingCloseSubmitter struct {
	reg *Registry
	sub Submitter
}

// NewRingCloseSubmitter builds a CloseSubmitter over reg/sub.
func NewRingCloseSubmitter(reg *Registry, sub Submitter) *RingCloseSubmitter {
	return &RingCloseSubmitter{reg: reg, sub: sub}
}

// SubmitClose implements fd.CloseSubmitter.
func (c *RingCloseSubmitter) SubmitClose(rawFd int) sched.Future[fd.CloseResult] {
	o, err := SubmitWith[struct{}](c.reg, c.sub, struct{}{}, closeOp{fd: rawFd})
	if err != nil {
		return closeErrFuture{err: err}
	}
	return &closeResultFuture{inner: o}
}

// closeResultFuture adapts an *Op[struct{}] arming a close into
// fd.CloseSubmitter's Future[CloseResult] contract.
type closeResultFuture struct {
	inner *Op[struct{}]
}

func (f *closeResultFuture) Poll(cx *sched.Context) sched.PollResult[fd.CloseResult] {
	res := f.inner.Poll(cx)
	if !res.Done() {
		return sched.Pending[fd.CloseResult]()
	}
	meta := res.Value().Meta
	if meta.Result < 0 {
		err := ioerr.WithErrno("close", ioerr.CodeKernelCompletion, syscall.Errno(-meta.Result))
		return sched.Ready(fd.CloseResult{Err: err})
	}
	return sched.Ready(fd.CloseResult{})
}

// closeErrFuture surfaces a submission failure (ring saturated) as an
// already-resolved CloseResult, since SharedFd.Close has no separate
// error channel for the submission step itself.
type closeErrFuture struct {
	err error
}

func (f closeErrFuture) Poll(cx *sched.Context) sched.PollResult[fd.CloseResult] {
	return sched.Ready(fd.CloseResult{Err: f.err})
}
