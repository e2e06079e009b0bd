package uring

import (
	"github.com/pawelgaczynski/giouring"

	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/sqe"
	"github.com/behrlich/ioruntime/ioerr"
)

// pendingBuild is a not-yet-submitted entry builder, queued when GetSQE
// found the ring momentarily full.
type pendingBuild func(e *sqe.Entry)

// Ring owns one kernel io_uring instance. It wraps giouring.Ring with a
// pending-submission retry discipline: callers that find the ring full
// get queued rather than blocked, and are flushed into the ring the
// next time there is space, modeled on the prepare/preparePending
// split in the ianic-xnet aio event loop.
type Ring struct {
	raw     *giouring.Ring
	pending []pendingBuild
	log     *logging.Logger
}

// NewRing creates a ring with the given submission-queue depth.
func NewRing(entries uint32, log *logging.Logger) (*Ring, error) {
	raw, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, ioerr.Wrap("create_ring", ioerr.CodeResourceExhausted, err)
	}
	return &Ring{raw: raw, log: log}, nil
}

// Fd returns the ring's file descriptor, used by Probe.
func (r *Ring) Fd() int { return int(r.raw.Fd()) }

// Close releases the ring.
func (r *Ring) Close() error {
	r.raw.QueueExit()
	return nil
}

// Submit implements op.Submitter: it queues build, then attempts to
// drain the pending queue into the ring's submission entries. Ring
// saturation after one flush-and-retry is returned as an error rather
// than blocking, matching try_submit_with's non-blocking contract.
func (r *Ring) Submit(build pendingBuild) error {
	r.pending = append(r.pending, build)
	if err := r.flushPending(); err != nil {
		return err
	}
	if len(r.pending) > 0 {
		// Still backed up after a flush attempt; try once more after an
		// explicit zero-wait submit in case the kernel had just made
		// room available.
		if _, err := r.raw.SubmitAndWait(0); err != nil {
			return ioerr.Wrap("submit", ioerr.CodeSubmissionRejected, err)
		}
		if err := r.flushPending(); err != nil {
			return err
		}
		if len(r.pending) > 0 {
			return ioerr.New("submit", ioerr.CodeSubmissionRejected, "submission queue saturated")
		}
	}
	return nil
}

// SubmitCancel implements op.Submitter's cancellation path.
func (r *Ring) SubmitCancel(targetUserData uint64) error {
	return r.Submit(func(e *sqe.Entry) {
		e.PrepareAsyncCancel(targetUserData, 0)
		e.SetUserData(cancelSentinelUserData)
	})
}

// cancelSentinelUserData marks a cancellation submission itself so
// DispatchCompletions can recognize and discard its completion instead
// of routing it to the caller's deliver func, which indexes by the
// *target's* slot rather than the canceling submission's own.
const cancelSentinelUserData = ^uint64(0)

// flushPending drains as much of the pending queue as the ring has room
// for right now.
func (r *Ring) flushPending() error {
	prepared := 0
	for _, build := range r.pending {
		raw := r.raw.GetSQE()
		if raw == nil {
			break
		}
		build(sqe.Wrap(raw))
		prepared++
	}
	if prepared == len(r.pending) {
		r.pending = nil
	} else {
		r.pending = r.pending[prepared:]
	}
	return nil
}

// SubmitAndWait enters the kernel, submitting everything queued and
// waiting for at least waitNr completions (0 for a non-blocking check).
func (r *Ring) SubmitAndWait(waitNr uint32) error {
	_, err := r.raw.SubmitAndWait(waitNr)
	return err
}

// DispatchCompletions peeks the completion queue and delivers every
// ready completion through deliver, advancing the CQ in one batched call,
// grounded on aio.Loop.flushCompletions's PeekBatchCQE/CQAdvance pair.
func (r *Ring) DispatchCompletions(deliver func(userData uint64, result int32, flags uint32)) uint32 {
	const batchSize = 128
	var cqes [batchSize]*giouring.CompletionQueueEvent

	var total uint32
	for {
		n := r.raw.PeekBatchCQE(cqes[:])
		if n == 0 {
			break
		}
		for i := uint32(0); i < n; i++ {
			cqe := cqes[i]
			if cqe.UserData == cancelSentinelUserData {
				continue
			}
			deliver(cqe.UserData, cqe.Res, cqe.Flags)
		}
		r.raw.CQAdvance(n)
		total += n
		if n < batchSize {
			break
		}
	}
	return total
}

// RegisterEventFd wires an eventfd into the ring so a write to it
// surfaces as a completion, waking a thread parked in SubmitAndWait.
func (r *Ring) RegisterEventFd(fd int) error {
	return r.raw.RegisterEventFd(fd)
}
