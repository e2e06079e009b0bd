package op

import (
	"syscall"

	"github.com/behrlich/ioruntime/internal/sqe"
)

// The OpAble implementations in this file are internal building blocks
// for core opcodes, without standing up a public TCP/UDP/file API (out
// of scope here). Only closeOp is submitted by code in this module (via
// the fd layer's CloseSubmitter); the others are available to any caller
// of SubmitWith.

// nopOp arms a Nop, exercising the submit/poll/complete path without
// touching any real resource.
type nopOp struct{}

func (nopOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareNop() }

// closeOp arms a Close of fd, used by SharedFd.Close's CloseSubmitter.
type closeOp struct {
	fd int
}

func (o closeOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareClose(o.fd) }

// cancelOp arms an AsyncCancel targeting another submission's
// user-data. Op[T].Cancel uses Submitter.SubmitCancel directly rather
// than this type for the common path; cancelOp exists so a cancellation
// can itself be submitted and polled through the ordinary SubmitWith
// path when a caller wants to observe the cancel op's own completion.
type cancelOp struct {
	targetUserData uint64
	flags          int
}

func (o cancelOp) BuildSubmissionEntry(e *sqe.Entry) {
	e.PrepareAsyncCancel(o.targetUserData, o.flags)
}

// timeoutOp arms a relative kernel Timeout as an ordinary op. The uring
// driver's ParkTimeout prepares its own Timeout entry directly and does
// not use this type.
type timeoutOp struct {
	ts    syscall.Timespec
	count uint32
	flags uint32
}

func (o *timeoutOp) BuildSubmissionEntry(e *sqe.Entry) {
	e.PrepareTimeout(&o.ts, o.count, o.flags)
}

// pollAddOp arms a PollAdd watching fd for the given event mask, for a
// future that needs readiness on a descriptor without issuing a read or
// write against it directly. The driver arms its own eventfd PollAdd
// directly rather than through this type.
type pollAddOp struct {
	fd   int
	mask uint32
}

func (o pollAddOp) BuildSubmissionEntry(e *sqe.Entry) { e.PreparePollAdd(o.fd, o.mask) }
