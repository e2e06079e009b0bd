package io

import (
	"syscall"
	"unsafe"

	"github.com/behrlich/ioruntime/internal/fd"
	"github.com/behrlich/ioruntime/internal/op"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/sqe"
	"github.com/behrlich/ioruntime/ioerr"
)

func uintptrOf(addr *syscall.RawSockaddrAny) uintptr {
	return uintptr(unsafe.Pointer(addr))
}

// Result is the outcome of any op in this file: the kernel's byte count
// or new-fd result on success, or the errno it reported translated to
// an error.
type Result struct {
	N   int
	Err error
}

func resultFromMeta(meta op.Meta) Result {
	if meta.Result < 0 {
		return Result{Err: ioerr.WithErrno("io_op", ioerr.CodeKernelCompletion, syscall.Errno(-meta.Result))}
	}
	return Result{N: int(meta.Result)}
}

// resultFuture adapts an *op.Op[T] into a Future[Result], running onDone
// (typically an IoBufMut.SetFilled call) once the completion lands, and
// forwarding Cancel so the returned future still satisfies the
// top-level Cancellable contract used by Select/Timeout. heldFd, when
// present, is a clone taken for the op's in-flight duration so the
// underlying descriptor can't be closed out from under the kernel while
// this op is armed; it is released (not closed) the moment this future
// stops needing it.
type resultFuture[T any] struct {
	inner  *op.Op[T]
	onDone func(T, Result)

	heldFd fd.SharedFd
	hasFd  bool
}

func (r *resultFuture[T]) Poll(cx *sched.Context) sched.PollResult[Result] {
	res := r.inner.Poll(cx)
	if !res.Done() {
		return sched.Pending[Result]()
	}
	r.releaseFd()
	c := res.Value()
	result := resultFromMeta(c.Meta)
	if r.onDone != nil {
		r.onDone(c.Data, result)
	}
	return sched.Ready(result)
}

// Cancel requests the kernel abandon this op, per Op[T].Cancel.
func (r *resultFuture[T]) Cancel() error {
	err := r.inner.Cancel()
	r.releaseFd()
	return err
}

func (r *resultFuture[T]) releaseFd() {
	if r.hasFd {
		fd.DropClone(r.heldFd)
		r.hasFd = false
	}
}

var _ sched.Future[Result] = (*resultFuture[Result])(nil)

type readOp struct {
	fd     int
	buf    IoBufMut
	offset uint64
}

func (o readOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareRead(o.fd, o.buf.Bytes(), o.offset) }

// Read arms a single Read against f into buf starting at offset,
// updating buf's filled count once the completion lands. f is cloned
// for the duration of the op and released once it completes or is
// cancelled.
func Read(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoBufMut, offset uint64) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, readOp{fd: f.RawFd(), buf: buf, offset: offset})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoBufMut]{inner: o, onDone: setFilledOnSuccess, heldFd: f.Clone(), hasFd: true}, nil
}

type writeOp struct {
	fd     int
	buf    IoBuf
	offset uint64
}

func (o writeOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareWrite(o.fd, o.buf.Bytes(), o.offset) }

// Write arms a single Write of buf's contents to f starting at offset.
// buf must not be mutated until the returned future resolves.
func Write(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoBuf, offset uint64) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, writeOp{fd: f.RawFd(), buf: buf, offset: offset})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoBuf]{inner: o, heldFd: f.Clone(), hasFd: true}, nil
}

type readvOp struct {
	fd     int
	buf    IoVecBufMut
	offset uint64
}

func (o readvOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareReadv(o.fd, o.buf.Iovecs(), o.offset) }

// Readv arms a vectored Read, scattering into buf's iovecs.
func Readv(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoVecBufMut, offset uint64) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, readvOp{fd: f.RawFd(), buf: buf, offset: offset})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoVecBufMut]{inner: o, onDone: setFilledVecOnSuccess, heldFd: f.Clone(), hasFd: true}, nil
}

type writevOp struct {
	fd     int
	buf    IoVecBuf
	offset uint64
}

func (o writevOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareWritev(o.fd, o.buf.Iovecs(), o.offset) }

// Writev arms a vectored Write, gathering from buf's iovecs.
func Writev(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoVecBuf, offset uint64) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, writevOp{fd: f.RawFd(), buf: buf, offset: offset})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoVecBuf]{inner: o, heldFd: f.Clone(), hasFd: true}, nil
}

type recvOp struct {
	fd    int
	buf   IoBufMut
	flags int
}

func (o recvOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareRecv(o.fd, o.buf.Bytes(), o.flags) }

// Recv arms a socket Recv into buf.
func Recv(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoBufMut, flags int) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, recvOp{fd: f.RawFd(), buf: buf, flags: flags})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoBufMut]{inner: o, onDone: setFilledOnSuccess, heldFd: f.Clone(), hasFd: true}, nil
}

type sendOp struct {
	fd    int
	buf   IoBuf
	flags int
}

func (o sendOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareSend(o.fd, o.buf.Bytes(), o.flags) }

// Send arms a socket Send of buf's contents.
func Send(reg *op.Registry, sub op.Submitter, f fd.SharedFd, buf IoBuf, flags int) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, buf, sendOp{fd: f.RawFd(), buf: buf, flags: flags})
	if err != nil {
		return nil, err
	}
	return &resultFuture[IoBuf]{inner: o, heldFd: f.Clone(), hasFd: true}, nil
}

type acceptOp struct {
	listenFd int
	flags    int
}

func (o acceptOp) BuildSubmissionEntry(e *sqe.Entry) { e.PrepareAccept(o.listenFd, o.flags) }

// Accept arms an Accept on listenFd. Result.N is the accepted
// connection's raw fd on success; the caller is expected to wrap it in
// a SharedFd (e.g. via Runtime.NewSharedFd) before using it in any
// further op.
func Accept(reg *op.Registry, sub op.Submitter, listenFd fd.SharedFd, flags int) (sched.Future[Result], error) {
	o, err := op.SubmitWith[struct{}](reg, sub, struct{}{}, acceptOp{listenFd: listenFd.RawFd(), flags: flags})
	if err != nil {
		return nil, err
	}
	return &resultFuture[struct{}]{inner: o, heldFd: listenFd.Clone(), hasFd: true}, nil
}

type connectOp struct {
	fd      int
	addr    *syscall.RawSockaddrAny
	addrLen uint64
}

func (o connectOp) BuildSubmissionEntry(e *sqe.Entry) {
	e.PrepareConnect(o.fd, uintptrOf(o.addr), o.addrLen)
}

// Connect arms a Connect of f to addr, which the caller must keep alive
// until the returned future resolves. addrLen is the meaningful prefix
// of addr (sizeof sockaddr_in or sockaddr_in6, not RawSockaddrAny's own
// padded size).
func Connect(reg *op.Registry, sub op.Submitter, f fd.SharedFd, addr *syscall.RawSockaddrAny, addrLen uint64) (sched.Future[Result], error) {
	o, err := op.SubmitWith(reg, sub, addr, connectOp{fd: f.RawFd(), addr: addr, addrLen: addrLen})
	if err != nil {
		return nil, err
	}
	return &resultFuture[*syscall.RawSockaddrAny]{inner: o, heldFd: f.Clone(), hasFd: true}, nil
}

func setFilledOnSuccess(buf IoBufMut, r Result) {
	if r.Err == nil {
		buf.SetFilled(r.N)
	}
}

func setFilledVecOnSuccess(buf IoVecBufMut, r Result) {
	if r.Err == nil {
		buf.SetFilled(r.N)
	}
}
