// Package sqe wraps the kernel submission queue entry type so both
// internal/op (the OpAble contract) and internal/uring (the driver that
// owns the ring) can depend on the same entry shape without depending on
// each other: op builds entries, uring submits them, and neither needs
// the other's package to do so.
package sqe

import (
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

// Entry is the per-submission descriptor an OpAble fills in. It wraps a
// pointer to giouring's SubmissionQueueEntry so call sites read in
// terms of this runtime's vocabulary (Entry, not SubmissionQueueEntry)
// while staying a thin wrapper: PrepareXxx calls forward directly to
// the kernel binding.
type Entry struct {
	raw *giouring.SubmissionQueueEntry
}

// Wrap adapts a raw giouring SQE obtained from the ring into an Entry.
func Wrap(raw *giouring.SubmissionQueueEntry) *Entry { return &Entry{raw: raw} }

// SetUserData sets the 64-bit slot identifier the completion carries back.
func (e *Entry) SetUserData(v uint64) { e.raw.UserData = v }

// PrepareAccept arms an Accept on listenFd.
func (e *Entry) PrepareAccept(listenFd int, flags int) {
	e.raw.PrepareAccept(listenFd, 0, 0, uint32(flags))
}

// PrepareConnect arms a Connect using a raw sockaddr pointer/length
// already pinned by the caller. Ownership of that memory must outlive
// the op's completion; the caller (the op's payload) is responsible for
// keeping it alive and calling runtime.KeepAlive as needed, since a
// uintptr conversion here would otherwise let the GC move or collect it
// out from under the kernel before the op completes.
func (e *Entry) PrepareConnect(fd int, addrPtr uintptr, addrLen uint64) {
	e.raw.PrepareConnect(fd, addrPtr, addrLen)
}

// PrepareRecv arms a single-shot Recv into buf.
func (e *Entry) PrepareRecv(fd int, buf []byte, flags int) {
	e.raw.PrepareRecv(fd, bufPtr(buf), uint32(len(buf)), uint32(flags))
}

// PrepareSend arms a Send of buf.
func (e *Entry) PrepareSend(fd int, buf []byte, flags int) {
	e.raw.PrepareSend(fd, bufPtr(buf), uint32(len(buf)), uint32(flags))
}

// PrepareReadv arms a vectored read at offset.
func (e *Entry) PrepareReadv(fd int, iovecs []syscall.Iovec, offset uint64) {
	e.raw.PrepareReadv(fd, iovecPtr(iovecs), uint32(len(iovecs)), offset)
}

// PrepareWritev arms a vectored write at offset.
func (e *Entry) PrepareWritev(fd int, iovecs []syscall.Iovec, offset uint64) {
	e.raw.PrepareWritev(fd, iovecPtr(iovecs), uint32(len(iovecs)), offset)
}

// PrepareRead arms a single-buffer read at offset.
func (e *Entry) PrepareRead(fd int, buf []byte, offset uint64) {
	e.raw.PrepareRead(fd, bufPtr(buf), uint32(len(buf)), offset)
}

// PrepareWrite arms a single-buffer write at offset.
func (e *Entry) PrepareWrite(fd int, buf []byte, offset uint64) {
	e.raw.PrepareWrite(fd, bufPtr(buf), uint32(len(buf)), offset)
}

// PrepareOpenat arms an Openat relative to dirFd.
func (e *Entry) PrepareOpenat(dirFd int, path string, flags int, mode uint32) {
	e.raw.PrepareOpenat(dirFd, path, uint32(flags), mode)
}

// PrepareClose arms a Close of fd.
func (e *Entry) PrepareClose(fd int) {
	e.raw.PrepareClose(fd)
}

// PrepareNop arms a Nop, used for exercising the submit/complete path
// without touching any real resource.
func (e *Entry) PrepareNop() {
	e.raw.PrepareNop()
}

// PrepareFsync arms an Fsync, optionally DATASYNC-only.
func (e *Entry) PrepareFsync(fd int, dataSyncOnly bool) {
	var flags uint32
	if dataSyncOnly {
		flags = giouring.FsyncDatasync
	}
	e.raw.PrepareFsync(fd, flags)
}

// PreparePollAdd arms a PollAdd watching fd for mask events.
func (e *Entry) PreparePollAdd(fd int, mask uint32) {
	e.raw.PreparePollAdd(fd, mask)
}

// PrepareSplice arms a Splice between two fds.
func (e *Entry) PrepareSplice(fdIn int, offIn int64, fdOut int, offOut int64, length int, flags int) {
	e.raw.PrepareSplice(fdIn, offIn, fdOut, offOut, uint32(length), uint32(flags))
}

// PrepareTimeout arms a relative kernel timeout used by park_timeout.
func (e *Entry) PrepareTimeout(ts *syscall.Timespec, count uint32, flags uint32) {
	e.raw.PrepareTimeout(ts, count, flags)
}

// PrepareAsyncCancel arms a cancellation of the submission identified by
// targetUserData.
func (e *Entry) PrepareAsyncCancel(targetUserData uint64, flags int) {
	e.raw.PrepareCancel(targetUserData, uint32(flags))
}

// bufPtr and iovecPtr take the address of caller-owned memory. The
// caller (an op's payload) is responsible for keeping that memory
// pinned and alive until the op's completion is observed; see
// IoBuf/IoVecBuf in package io for the ownership contract this implies.
func bufPtr(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

func iovecPtr(iovecs []syscall.Iovec) uintptr {
	if len(iovecs) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&iovecs[0]))
}
