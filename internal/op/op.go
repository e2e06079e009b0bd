package op

import (
	"runtime"

	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/sqe"
	"github.com/behrlich/ioruntime/ioerr"
)

// Completion is what polling an Op[T] to readiness yields: the kernel's
// result/flags pair alongside the payload that was submitted, handed
// back so the caller regains ownership of any buffer it lent the
// kernel.
type Completion[T any] struct {
	Meta Meta
	Data T
}

// Op represents one in-flight (or already-collected) kernel operation
// carrying a payload of type T. It implements sched.Future so callers
// poll it exactly like any other future.
type Op[T any] struct {
	reg        *Registry
	sub        Submitter
	index      int
	generation uint32
	payload    T
	collected  bool
}

// SubmitWith allocates a slot, builds the submission via able, and
// submits it to the kernel. The payload is retained on the returned Op
// so it stays reachable (and therefore un-collectable) for as long as
// the kernel might still be reading or writing into any buffer it owns.
//
// SubmitWith never blocks or retries beyond what Submitter.Submit itself
// does; a saturated ring that Submit cannot clear surfaces as an error
// rather than blocking the caller.
func SubmitWith[T any](reg *Registry, sub Submitter, payload T, able OpAble) (*Op[T], error) {
	index, generation := reg.Reserve()
	userData := UserData(index, generation)

	err := sub.Submit(func(e *sqe.Entry) {
		able.BuildSubmissionEntry(e)
		e.SetUserData(userData)
	})
	if err != nil {
		reg.Free(index, generation)
		return nil, ioerr.Wrap("submit", ioerr.CodeSubmissionRejected, err)
	}

	o := &Op[T]{reg: reg, sub: sub, index: index, generation: generation, payload: payload}
	runtime.SetFinalizer(o, finalizeOp[T])
	return o, nil
}

// TrySubmitWith is SubmitWith under another name for call sites that
// want to foreground the non-blocking, surfaces-saturation-as-an-error
// contract as a distinct entry point. Both share the same underlying
// retry policy, which lives in the driver's Submitter implementation
// (one flush-and-retry before giving up), so there is no behavioral
// difference to express here.
func TrySubmitWith[T any](reg *Registry, sub Submitter, payload T, able OpAble) (*Op[T], error) {
	return SubmitWith(reg, sub, payload, able)
}

// finalizeOp is the Drop-emulation safety net: if an Op[T] becomes
// unreachable while still pending (the caller never polled it to
// Ready, and never called Cancel), mark its slot Ignored and move the
// payload into the slot so it survives until the kernel drains the
// completion. Unlike Cancel, it submits no AsyncCancel: the kernel op
// runs until it completes on its own.
func finalizeOp[T any](o *Op[T]) {
	if o.collected {
		return
	}
	o.reg.MarkIgnored(o.index, o.generation, o.payload)
}

// Poll implements sched.Future[Completion[T]].
func (o *Op[T]) Poll(cx *sched.Context) sched.PollResult[Completion[T]] {
	if o.collected {
		return sched.Ready(Completion[T]{Data: o.payload})
	}
	meta, ready := o.reg.Poll(o.index, o.generation, cx)
	if !ready {
		return sched.Pending[Completion[T]]()
	}
	o.collected = true
	runtime.SetFinalizer(o, nil)
	o.reg.Free(o.index, o.generation)
	return sched.Ready(Completion[T]{Meta: meta, Data: o.payload})
}

// Cancel submits an AsyncCancel targeting this op's submission and marks
// its slot Ignored, transferring the payload into the slot so it
// survives past this Op's own lifetime. Dropping an Op with a
// still-pending slot orphans the payload the same way (see finalizeOp)
// but submits no AsyncCancel; Cancel does both eagerly, while the
// caller can still observe the submission error, if any.
func (o *Op[T]) Cancel() error {
	if o.collected {
		return nil
	}
	userData := UserData(o.index, o.generation)
	o.reg.MarkIgnored(o.index, o.generation, o.payload)
	o.collected = true
	runtime.SetFinalizer(o, nil)
	if err := o.sub.SubmitCancel(userData); err != nil {
		return ioerr.Wrap("cancel_op", ioerr.CodeCancelled, err)
	}
	return nil
}

// OpCanceller returns an opaque Canceller/CancelHandle pair for this op,
// usable across an await point by code that only wants the ability to
// request cancellation, not the full Op[T] (which ties it to T).
func (o *Op[T]) OpCanceller() (*Canceller, CancelHandle) {
	return NewCanceller(o.Cancel)
}
