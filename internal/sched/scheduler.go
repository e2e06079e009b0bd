package sched

import (
	"math"
	"sync"

	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/metrics"
)

// noCallerDeadline is passed to ParkTimeout when the scheduler itself has
// no bound to impose: large enough that a timer-wrapped driver's
// min(nanos, time_to_next_timer) shrink always prefers a real pending
// timer, but still a positive duration so it doesn't trip a driver's
// nanos<=0 non-blocking-flush case.
const noCallerDeadline int64 = math.MaxInt64

// Driver is the minimal surface the scheduler needs from whatever drives
// the event loop underneath it: something pollable and something to
// sleep on when the ready queue runs dry. The concrete driver (plain
// uring or timer-wrapped uring) satisfies this without the sched package
// importing either, avoiding the cycle internal/uring -> internal/sched
// that a direct dependency would create.
type Driver interface {
	Park() error
	ParkTimeout(nanos int64) error
}

// Scheduler is a single-threaded, strictly-FIFO cooperative scheduler.
// It owns the ready queue and the registry of live tasks; there is no
// work stealing and no priority, so fairness comes entirely from FIFO
// order.
type Scheduler struct {
	mu       sync.Mutex
	ready    []runnable
	tasks    map[uint64]runnable
	current  uint64 // id of the task currently being polled, 0 if none

	driver  Driver
	log     *logging.Logger
	metrics metrics.Observer
}

// New builds a scheduler driven by d.
func New(d Driver, log *logging.Logger, observer metrics.Observer) *Scheduler {
	if observer == nil {
		observer = metrics.NoOpObserver{}
	}
	return &Scheduler{
		tasks:   make(map[uint64]runnable),
		driver:  d,
		log:     log,
		metrics: observer,
	}
}

func (s *Scheduler) enqueue(r runnable) {
	s.mu.Lock()
	s.ready = append(s.ready, r)
	s.mu.Unlock()
}

func (s *Scheduler) deregister(id uint64) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// Spawn allocates a task wrapping future with state Runnable, pushes it
// onto the ready queue, and returns a JoinHandle resolving with its
// output. Spawn is a package-level generic function rather than a
// method on Scheduler because Go forbids a method from declaring type
// parameters beyond its receiver's.
func Spawn[T any](s *Scheduler, future Future[T]) *JoinHandle[T] {
	t := newTask(s, future)

	s.mu.Lock()
	s.tasks[t.taskID] = t
	s.ready = append(s.ready, t)
	s.mu.Unlock()

	s.metrics.ObserveTaskSpawned()
	if s.log != nil {
		s.log.Debug("task spawned", "task", t.taskID)
	}
	return &JoinHandle[T]{state: t.join}
}

// BlockOn establishes the calling thread as the owner of s, drains the
// ready queue until the root future completes, parking the driver
// whenever the queue runs dry.
func BlockOn[T any](s *Scheduler, root Future[T]) T {
	done := false
	var out T

	waker := NewWaker(func() {})
	cx := NewContext(waker)

	rootPoll := func() bool {
		result := root.Poll(cx)
		if result.Done() {
			out = result.Value()
			done = true
			return true
		}
		return false
	}

	if rootPoll() {
		return out
	}

	for {
		s.runReadyQueue()
		if rootPoll() {
			return out
		}
		if done {
			return out
		}
		s.park()
	}
}

// runReadyQueue polls every task currently on the ready queue exactly
// once. Tasks that re-enqueue themselves via their waker during this
// pass are picked up on a later call rather than the current one,
// bounding each pass's work to a snapshot of the queue.
func (s *Scheduler) runReadyQueue() {
	s.mu.Lock()
	batch := s.ready
	s.ready = nil
	s.mu.Unlock()

	s.metrics.ObserveReadyDepth(uint32(len(batch)))

	for _, r := range batch {
		s.current = r.id()
		r.pollOnce()
		s.current = 0
		if r.state() == StateComplete {
			s.metrics.ObserveTaskCompleted()
		}
	}
}

// park parks the driver until either a completion arrives or, if a
// timer driver is wrapping it, the next pending timer's deadline is
// nearer than that. Going through ParkTimeout rather than Park
// unconditionally is what lets a timer-wrapped driver shrink the wait
// instead of blocking on kernel completions alone.
func (s *Scheduler) park() {
	s.metrics.ObservePark()
	if err := s.driver.ParkTimeout(noCallerDeadline); err != nil && s.log != nil {
		s.log.Warnf("park returned error: %v", err)
	}
}

// YieldNow re-enqueues the currently running task at the back of the
// ready queue and suspends it for one scheduling round, without waiting
// on any external event. It relies only on the poll context's waker, so
// polled outside BlockOn it behaves the same way: the first poll wakes
// that waker and returns Pending, the next poll returns Ready.
func YieldNow(s *Scheduler) Future[struct{}] {
	yielded := false
	return FutureFunc[struct{}](func(cx *Context) PollResult[struct{}] {
		if yielded {
			return Ready(struct{}{})
		}
		yielded = true
		cx.Waker().WakeOnce()
		return Pending[struct{}]()
	})
}

// CurrentTaskID returns the id of the task currently being polled, or 0
// if called outside a poll (e.g. from BlockOn's own loop).
func (s *Scheduler) CurrentTaskID() uint64 { return s.current }

// TaskCount returns the number of live (non-terminal) tasks, mainly for
// tests and diagnostics.
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CancelAll cancels every live task, used by Runtime shutdown to unwind
// outstanding work deterministically rather than leaking goroutine-less
// but still-registered tasks.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	tasks := make([]runnable, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
}
