package ioruntime

import (
	"sync"

	"github.com/behrlich/ioruntime/internal/fd"
	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/metrics"
	"github.com/behrlich/ioruntime/internal/op"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/timer"
	"github.com/behrlich/ioruntime/internal/uring"
)

// Runtime is the thread-local execution context: one kernel ring, one
// scheduler, an optional timer wheel. It must not be shared across OS
// threads; the caller that built it owns it for its entire lifetime.
type Runtime struct {
	driver      *uring.Driver
	timerDriver *timer.TimerDriver
	scheduler   *sched.Scheduler

	log      *logging.Logger
	metrics  *metrics.Metrics
	observer metrics.Observer
	features uring.Features

	blockingStrategy BlockingStrategy
	threadPool       ThreadPool
}

// Registry exposes the completion slot registry ops submit against.
func (rt *Runtime) Registry() *op.Registry { return rt.driver.Registry() }

// Submitter exposes the op.Submitter this runtime's ops arm themselves
// against.
func (rt *Runtime) Submitter() op.Submitter { return rt.driver }

// TimerDriver returns the runtime's timer wheel, or nil if the builder
// never called EnableTimer/EnableAll. The time package's Sleep/Timeout
// need this to register deadlines.
func (rt *Runtime) TimerDriver() *timer.TimerDriver { return rt.timerDriver }

// Scheduler returns the runtime's task scheduler.
func (rt *Runtime) Scheduler() *sched.Scheduler { return rt.scheduler }

// NewSharedFd wraps rawFd in a fd.SharedFd whose eventual Close submits a
// real kernel Close op against this runtime's ring, instead of calling
// close(2) synchronously and racing any op that still holds a clone.
func (rt *Runtime) NewSharedFd(rawFd int) fd.SharedFd {
	return fd.New(rawFd, op.NewRingCloseSubmitter(rt.Registry(), rt.Submitter()))
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *logging.Logger { return rt.log }

// Unpark wakes rt's thread if it is currently parked in BlockOn, the
// one cross-thread entry point into an otherwise single-threaded
// runtime. Signal handlers and other external producers use this to
// break the thread out of a kernel park so a task they've made runnable
// (e.g. via a shared atomic flag) gets polled promptly instead of
// waiting for the next I/O completion or timer tick.
func (rt *Runtime) Unpark() { rt.driver.Unpark() }

// Features reports which kernel opcodes this runtime's ring supports,
// as observed by Builder.Build's one-time capability probe.
func (rt *Runtime) Features() uring.Features { return rt.features }

// Metrics takes a point-in-time snapshot of this runtime's combined
// scheduler, timer and I/O statistics.
func (rt *Runtime) Metrics() metrics.Snapshot { return rt.metrics.Snapshot() }

// BlockingStrategy reports how this runtime handles CPU-bound work that
// would otherwise block its single OS thread.
func (rt *Runtime) BlockingStrategy() BlockingStrategy { return rt.blockingStrategy }

// RunBlocking executes fn according to the configured BlockingStrategy:
// BlockingPanic rejects it, BlockingExecuteLocal runs it inline (accepting
// the latency cost to every other task on this thread), and
// BlockingAttached offloads it to the attached ThreadPool, suspending the
// calling future until the pool reports completion.
func (rt *Runtime) RunBlocking(fn func() any) sched.Future[any] {
	switch rt.blockingStrategy {
	case BlockingExecuteLocal:
		result := fn()
		return sched.FutureFunc[any](func(*sched.Context) sched.PollResult[any] {
			return sched.Ready(result)
		})
	case BlockingAttached:
		return newBlockingFuture(rt.threadPool, fn)
	default:
		panic("ioruntime: blocking work submitted but BlockingStrategy is Panic")
	}
}

// Close releases the runtime's kernel ring and eventfd. It must be
// called after the last BlockOn returns.
func (rt *Runtime) Close() error {
	rt.metrics.Stop()
	return rt.driver.Close()
}

// blockingFuture submits fn to a ThreadPool on its first poll (not at
// construction), so the waker the pool's completion callback wakes is
// always the one belonging to the task actually awaiting the result.
type blockingFuture struct {
	pool ThreadPool
	fn   func() any

	mu        sync.Mutex
	submitted bool
	done      bool
	result    any
	waker     *sched.Waker
}

func newBlockingFuture(pool ThreadPool, fn func() any) *blockingFuture {
	return &blockingFuture{pool: pool, fn: fn}
}

func (f *blockingFuture) Poll(cx *sched.Context) sched.PollResult[any] {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		return sched.Ready(result)
	}
	if f.submitted {
		f.mu.Unlock()
		return sched.Pending[any]()
	}
	f.submitted = true
	f.waker = cx.Waker()
	f.mu.Unlock()

	f.pool.Submit(f.fn, f.onDone)
	return sched.Pending[any]()
}

func (f *blockingFuture) onDone(result any) {
	f.mu.Lock()
	f.result = result
	f.done = true
	waker := f.waker
	f.mu.Unlock()
	waker.WakeOnce()
}

var _ sched.Future[any] = (*blockingFuture)(nil)
