// Package io exposes the buffer ownership contracts and cancellation
// handle that every op in this runtime is built against, without
// standing up a concrete net.Conn/os.File-shaped API: a single
// fd-and-buffer op constructor per opcode is as far as this package
// goes, matching the out-of-scope boundary drawn around concrete
// TCP/UDP/File wrapper surfaces.
package io

import (
	"syscall"
	"unsafe"

	"github.com/behrlich/ioruntime/internal/queue"
)

func bufPtr(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

// IoBuf is a buffer lent to the kernel as a source: the kernel reads
// from Bytes() and the op holds a reference to whatever implements this
// until the completion is observed, so the buffer's owner must not reuse
// or mutate it before then.
type IoBuf interface {
	Bytes() []byte
}

// IoBufMut is a buffer lent to the kernel as a destination: the kernel
// writes into Bytes() and calls SetFilled with the byte count the
// completion reported once the op has been polled to readiness.
type IoBufMut interface {
	IoBuf
	SetFilled(n int)
}

// IoVecBuf is the vectored counterpart of IoBuf, for readv/writev-style
// ops spanning multiple discontiguous regions.
type IoVecBuf interface {
	Iovecs() []syscall.Iovec
}

// IoVecBufMut is the vectored counterpart of IoBufMut.
type IoVecBufMut interface {
	IoVecBuf
	SetFilled(n int)
}

// ByteBuf is the default IoBuf/IoBufMut implementation: a flat byte
// slice plus the filled count the last completion reported.
type ByteBuf struct {
	b      []byte
	filled int
}

// NewByteBuf wraps b for use as either an IoBuf (write source) or
// IoBufMut (read destination), depending which op it's handed to.
func NewByteBuf(b []byte) *ByteBuf { return &ByteBuf{b: b} }

func (b *ByteBuf) Bytes() []byte { return b.b }
func (b *ByteBuf) SetFilled(n int) { b.filled = n }

// Filled returns the byte count last recorded by SetFilled (which the
// read-shaped ops call on completion), or 0 if SetFilled has never been
// called, as for a ByteBuf only ever used as a write source.
func (b *ByteBuf) Filled() int { return b.filled }

var (
	_ IoBuf    = (*ByteBuf)(nil)
	_ IoBufMut = (*ByteBuf)(nil)
)

// pooledMinSize is the smallest request internal/queue's bucketed pool
// is worth going through; below it, a plain make avoids rounding a
// small Recv up into the 128KB bucket.
const pooledMinSize = 64 * 1024

// NewPooledByteBuf returns a ByteBuf backed by internal/queue's
// size-bucketed pool for requests at or above pooledMinSize, falling
// back to a direct allocation otherwise. Release returns the backing
// slice to the pool; callers that skip Release simply leak it to the GC
// like any other buffer, they don't corrupt the pool.
func NewPooledByteBuf(size uint32) *ByteBuf {
	if size < pooledMinSize {
		return NewByteBuf(make([]byte, size))
	}
	return NewByteBuf(queue.GetBuffer(size))
}

// Release returns b's backing slice to the pool it came from, if any.
// Safe to call on a ByteBuf built with NewByteBuf too; PutBuffer simply
// ignores capacities that don't match one of its buckets.
func (b *ByteBuf) Release() {
	queue.PutBuffer(b.b)
}

// IovecBuf is the vectored counterpart of ByteBuf.
type IovecBuf struct {
	v      []syscall.Iovec
	filled int
}

// NewIovecBuf wraps bufs as a vectored IoVecBuf/IoVecBufMut, building
// one syscall.Iovec per slice. The slices themselves are retained by
// reference, not copied.
func NewIovecBuf(bufs [][]byte) *IovecBuf {
	v := make([]syscall.Iovec, len(bufs))
	for i, b := range bufs {
		v[i] = syscall.Iovec{Base: bufPtr(b), Len: uint64(len(b))}
	}
	return &IovecBuf{v: v}
}

func (b *IovecBuf) Iovecs() []syscall.Iovec { return b.v }
func (b *IovecBuf) SetFilled(n int)         { b.filled = n }
func (b *IovecBuf) Filled() int             { return b.filled }

var (
	_ IoVecBuf    = (*IovecBuf)(nil)
	_ IoVecBufMut = (*IovecBuf)(nil)
)
