// Package op implements the completion slot registry and the OpAble
// contract every kernel operation builds against: submitting a payload
// reserves a slot, the slot's index rides in the submission's user-data,
// and the driver's completion dispatch resolves the slot when the kernel
// reports back.
package op

import (
	"sync"

	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/ioerr"
)

// Meta is the result of a completed kernel operation: a signed result
// (negative on error, matching an errno when negative) and kernel flags
// (e.g. IORING_CQE_F_MORE for multishot ops).
type Meta struct {
	Result int32
	Flags  uint32
}

type slotState int32

const (
	slotFree      slotState = iota // unused, on the free list
	slotSubmitted                  // armed with the kernel, awaiting completion
	slotArmed                      // completion delivered, awaiting a poll to collect it
	slotIgnored                    // orphaned by drop/cancel, draining until the kernel returns it
)

// slot is one entry in the registry's slab. The generation tag guards
// against a stale UserData (from a slot that has since been freed and
// reused) being mistaken for a live completion.
type slot struct {
	mu            sync.Mutex
	st            slotState
	generation    uint32
	waker         *sched.Waker
	meta          Meta
	orphanPayload any // set when an Op is dropped/cancelled while still pending
}

// Registry is the slab of completion slots backing every in-flight op on
// one driver. It never reuses a slot until the kernel has returned its
// completion: a slotIgnored slot stays off the free list until Deliver
// observes it.
type Registry struct {
	mu       sync.Mutex
	slots    []*slot
	freeList []int
}

// NewRegistry builds an empty registry. Slots are allocated lazily as
// ops are submitted; there is no fixed cap here, unlike the kernel's
// submission ring, since an arbitrary number of ops may be pending
// relative to ring depth (a full ring only blocks submission, not
// bookkeeping).
func NewRegistry() *Registry {
	return &Registry{}
}

// UserData encodes a slot index and its generation into the 64-bit
// value carried by a submission and its eventual completion.
func UserData(index int, generation uint32) uint64 {
	return uint64(generation)<<32 | uint64(uint32(index))
}

// DecodeUserData splits a UserData value back into index and generation.
func DecodeUserData(v uint64) (index int, generation uint32) {
	return int(uint32(v)), uint32(v >> 32)
}

// Reserve allocates a slot in the Submitted state and returns its index
// and current generation, ready to be encoded into a submission.
func (r *Registry) Reserve() (index int, generation uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.freeList); n > 0 {
		index = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		s := r.slots[index]
		s.mu.Lock()
		s.st = slotSubmitted
		s.waker = nil
		s.meta = Meta{}
		s.orphanPayload = nil
		generation = s.generation
		s.mu.Unlock()
		return index, generation
	}

	index = len(r.slots)
	r.slots = append(r.slots, &slot{st: slotSubmitted})
	return index, 0
}

// Poll checks the slot at index/generation for a delivered completion.
// If none has arrived, it records cx's waker so Deliver can wake the
// caller later and returns false.
func (r *Registry) Poll(index int, generation uint32, cx *sched.Context) (Meta, bool) {
	r.mu.Lock()
	s := r.slots[index]
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// The slot was recycled out from under a stale Op; treat as a
		// cancelled completion with no result.
		return Meta{}, true
	}
	if s.st == slotArmed {
		meta := s.meta
		return meta, true
	}
	s.waker = cx.Waker()
	return Meta{}, false
}

// Free releases index/generation back to the free list once its owning
// Op has collected the completion. Calling Free twice on the same
// generation, or on a generation that has already advanced, is a no-op.
func (r *Registry) Free(index int, generation uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slots[index]
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.st = slotFree
	s.generation++
	s.waker = nil
	s.orphanPayload = nil
	s.mu.Unlock()

	r.freeList = append(r.freeList, index)
}

// MarkIgnored transitions a pending slot to Ignored, stashing payload so
// it survives until the kernel drains the corresponding completion (or
// cancellation). Deliver frees an Ignored slot itself once that
// completion lands, so callers of MarkIgnored must not call Free.
func (r *Registry) MarkIgnored(index int, generation uint32, payload any) {
	r.mu.Lock()
	s := r.slots[index]
	r.mu.Unlock()

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	if s.st == slotArmed {
		// Completion already landed before cancellation could take
		// effect; nothing to orphan. Both callers (Op.Cancel and
		// finalizeOp) abandon the Op, so nobody will collect the
		// result: release the slot here.
		s.mu.Unlock()
		r.Free(index, generation)
		return
	}
	s.st = slotIgnored
	s.orphanPayload = payload
	s.mu.Unlock()
}

// Deliver is called by the driver's completion dispatch loop for each
// completion it reads off the kernel's completion queue. If the slot is
// Ignored, it releases the slot (and any orphaned payload) immediately;
// otherwise it arms the slot with the result and wakes whoever is
// waiting on it.
func (r *Registry) Deliver(userData uint64, result int32, flags uint32) {
	index, generation := DecodeUserData(userData)

	r.mu.Lock()
	if index < 0 || index >= len(r.slots) {
		r.mu.Unlock()
		panic(ioerr.WithSlot("deliver", index, ioerr.CodeFatal, "completion for unknown user-data, no such slot"))
	}
	s := r.slots[index]
	r.mu.Unlock()

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	if s.st == slotIgnored {
		s.st = slotFree
		s.generation++
		s.orphanPayload = nil
		s.mu.Unlock()

		r.mu.Lock()
		r.freeList = append(r.freeList, index)
		r.mu.Unlock()
		return
	}
	if s.st == slotArmed {
		// A second completion for a slot that already holds an
		// unclaimed result means the kernel (or our own bookkeeping)
		// double-delivered: an invariant the rest of the registry
		// depends on has broken, so this aborts rather than risking
		// silently clobbered state.
		s.mu.Unlock()
		panic(ioerr.WithSlot("deliver", index, ioerr.CodeFatal, "duplicate completion for an already-armed slot"))
	}

	s.st = slotArmed
	s.meta = Meta{Result: result, Flags: flags}
	waker := s.waker
	s.waker = nil
	s.mu.Unlock()

	waker.WakeOnce()
}

// Len reports the number of slots ever allocated, live or free; mainly
// for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
