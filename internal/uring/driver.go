package uring

import (
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/metrics"
	"github.com/behrlich/ioruntime/internal/op"
	"github.com/behrlich/ioruntime/internal/sqe"
	"github.com/behrlich/ioruntime/ioerr"
)

// KernelRing is everything Driver needs from a kernel ring. *Ring
// satisfies it; tests substitute a fake so the park/dispatch state
// machine can be exercised without a live kernel ring.
type KernelRing interface {
	Fd() int
	Close() error
	Submit(build func(e *sqe.Entry)) error
	SubmitCancel(targetUserData uint64) error
	SubmitAndWait(waitNr uint32) error
	DispatchCompletions(deliver func(userData uint64, result int32, flags uint32)) uint32
}

// Driver owns one thread's kernel ring and its completion registry. It
// satisfies op.Submitter (so ops can arm themselves against it) and
// sched.Driver (so the scheduler can park the thread on it between ready
// rounds), the two consumer-declared interfaces that keep this package
// from being imported by either of theirs.
type Driver struct {
	ring KernelRing
	reg  *op.Registry
	log  *logging.Logger
	obs  metrics.Observer

	eventFd     int
	wakePending atomic.Bool
	pollArmed   bool
}

// these reserved user-data values never correspond to a registry slot
// (slot user-data always carries a generation in its high 32 bits paired
// with a live index; the registry never hands out these exact values).
// They also stay clear of ring.cancelSentinelUserData, which the ring
// layer filters out before completions ever reach dispatch's callback.
const (
	eventFdUserData = cancelSentinelUserData - 1
	timeoutUserData = cancelSentinelUserData - 2
)

// NewDriver creates a ring of the given submission-queue depth and the
// eventfd used to interrupt a thread parked in the kernel, grounded on
// the pack's PollAdd-on-an-eventfd cross-thread wakeup pattern rather
// than IORING_REGISTER_EVENTFD (which signals the other direction, ring
// completion to external epoll, not into the ring).
func NewDriver(entries uint32, log *logging.Logger, obs metrics.Observer) (*Driver, error) {
	ring, err := NewRing(entries, log)
	if err != nil {
		return nil, err
	}

	eventFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		ring.Close()
		return nil, ioerr.Wrap("create_eventfd", ioerr.CodeResourceExhausted, err)
	}

	return newDriver(ring, eventFd, log, obs), nil
}

// newDriver builds a Driver against an already-constructed ring and
// wakeup fd, split out of NewDriver so tests can pass a fake KernelRing
// and a plain pipe fd instead of a live ring and eventfd.
func newDriver(ring KernelRing, eventFd int, log *logging.Logger, obs metrics.Observer) *Driver {
	d := &Driver{
		ring:    ring,
		reg:     op.NewRegistry(),
		log:     log.With("driver"),
		obs:     obs,
		eventFd: eventFd,
	}
	d.armPoll()
	return d
}

// Registry exposes the completion slot registry to the layers above
// (op.SubmitWith's caller, the timer wheel, fd's CloseSubmitter) that
// need to build ops against this driver.
func (d *Driver) Registry() *op.Registry { return d.reg }

// Probe reports which kernel opcodes this driver's ring supports.
func (d *Driver) Probe() (Features, error) { return Probe(d.ring.Fd()) }

// Submit implements op.Submitter.
func (d *Driver) Submit(build func(e *sqe.Entry)) error {
	if err := d.ring.Submit(build); err != nil {
		d.obs.ObserveSubmitRetry()
		return err
	}
	d.obs.ObserveSubmit()
	return nil
}

// SubmitCancel implements op.Submitter.
func (d *Driver) SubmitCancel(targetUserData uint64) error {
	return d.ring.SubmitCancel(targetUserData)
}

// armPoll (re-)queues a single-shot PollAdd watching the eventfd for
// readability. It must be called again each time the poll fires, since
// this driver does not assume a multishot PollAdd is available.
func (d *Driver) armPoll() {
	_ = d.ring.Submit(func(e *sqe.Entry) {
		e.PreparePollAdd(d.eventFd, unix.POLLIN)
		e.SetUserData(eventFdUserData)
	})
	d.pollArmed = true
}

// Park implements sched.Driver: block until at least one completion
// (including the eventfd wakeup poll) is ready, then dispatch all of
// them into the registry.
func (d *Driver) Park() error {
	return d.waitAndDispatch(1)
}

// ParkTimeout implements sched.Driver: block for at most nanos before
// returning, even with nothing else ready, by racing a kernel Timeout
// submission against ordinary completions. A non-positive nanos means no
// wait at all, behaving as a plain non-blocking submit: flush whatever
// is queued and dispatch whatever has already completed, the same as
// Submit followed by a zero-wait reap.
func (d *Driver) ParkTimeout(nanos int64) error {
	if nanos <= 0 {
		return d.waitAndDispatch(0)
	}
	ts := syscall.NsecToTimespec(nanos)
	err := d.ring.Submit(func(e *sqe.Entry) {
		e.PrepareTimeout(&ts, 1, 0)
		e.SetUserData(timeoutUserData)
	})
	if err != nil {
		return err
	}
	return d.waitAndDispatch(1)
}

func (d *Driver) waitAndDispatch(waitNr uint32) error {
	d.obs.ObservePark()
	if err := d.ring.SubmitAndWait(waitNr); err != nil {
		errno, ok := err.(syscall.Errno)
		if ok && isTemporary(errno) {
			return nil
		}
		if ok {
			return ioerr.WithErrno("park", ioerr.CodeKernelCompletion, errno)
		}
		return ioerr.Wrap("park", ioerr.CodeKernelCompletion, err)
	}
	d.dispatch()
	return nil
}

func isTemporary(errno syscall.Errno) bool {
	return errno == syscall.EINTR || errno == syscall.EAGAIN || errno == syscall.ETIME
}

func (d *Driver) dispatch() {
	d.ring.DispatchCompletions(func(userData uint64, result int32, flags uint32) {
		switch userData {
		case eventFdUserData:
			d.drainEventFd()
			d.pollArmed = false
			d.armPoll()
			return
		case timeoutUserData:
			return
		default:
			d.reg.Deliver(userData, result, flags)
			// Per-op submission timestamps aren't threaded through the
			// registry, so completion latency isn't observable here; the
			// timer wheel and scheduler observers cover latency-sensitive
			// paths instead.
			d.obs.ObserveCompletion(0)
		}
	})
}

func (d *Driver) drainEventFd() {
	var buf [8]byte
	_, _ = unix.Read(d.eventFd, buf[:])
	d.wakePending.Store(false)
}

// Unpark wakes a thread parked in Park/ParkTimeout from any other OS
// thread, by writing to its eventfd. Sfence orders the wakePending
// store before the write becomes visible to the parked thread, so a
// concurrent Park call that observes the write also observes the flag.
func (d *Driver) Unpark() {
	if !d.wakePending.CompareAndSwap(false, true) {
		return
	}
	Sfence()
	var buf [8]byte
	buf[0] = 1
	_, _ = unix.Write(d.eventFd, buf[:])
}

// Close releases the ring and eventfd.
func (d *Driver) Close() error {
	_ = unix.Close(d.eventFd)
	return d.ring.Close()
}
