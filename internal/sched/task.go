package sched

import "sync/atomic"

// State is a task's position in its lifecycle.
type State int

const (
	StateRunnable  State = iota // on the ready queue, awaiting a poll
	StateRunning                // currently being polled
	StateIdle                   // parked, waiting on a waker to re-enqueue it
	StateComplete                // finished, output available
	StateCancelled               // dropped before completion
)

func (s State) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var nextTaskID atomic.Uint64

// runnable is the type-erased boundary the scheduler's heterogeneous
// ready queue needs: Go forbids a method from introducing extra type
// parameters beyond its receiver's, so a queue of Task[T] for varying T
// can only be held as a queue of this non-generic interface.
type runnable interface {
	id() uint64
	pollOnce()
	state() State
	cancel()
}

// Task wraps a Future[T] with the bookkeeping the scheduler needs: a
// state word, the join waker, and the output cell. A JoinHandle[T] holds
// a pointer to the same joinState[T] rather than to the Task directly,
// so the scheduler can drop its own Task reference once it registers the
// output without anyone dereferencing a stale pointer.
type Task[T any] struct {
	taskID   uint64
	future   Future[T]
	st       atomic.Int32
	notified atomic.Bool // set by a waker fired while pollOnce is still running
	join     *joinState[T]
	sched    *Scheduler
}

func newTask[T any](sched *Scheduler, future Future[T]) *Task[T] {
	t := &Task[T]{
		taskID: nextTaskID.Add(1),
		future: future,
		sched:  sched,
		join:   newJoinState[T](),
	}
	t.st.Store(int32(StateRunnable))
	return t
}

func (t *Task[T]) id() uint64    { return t.taskID }
func (t *Task[T]) state() State  { return State(t.st.Load()) }

// pollOnce polls the wrapped future exactly once, per the scheduler's
// block_on contract: Pending transitions to Idle, Ready completes the
// task and wakes its join handle.
func (t *Task[T]) pollOnce() {
	t.notified.Store(false)
	t.st.Store(int32(StateRunning))

	waker := NewWaker(func() {
		t.notified.Store(true)
		// CAS so a waker fired while the task is already Runnable (or
		// has completed) is a no-op rather than a double-enqueue. A
		// waker fired while still Running is picked up below via the
		// notified flag once pollOnce sees the Pending result, since
		// the task isn't Idle yet for this CAS to match.
		if t.st.CompareAndSwap(int32(StateIdle), int32(StateRunnable)) {
			t.sched.enqueue(t)
		}
	})
	cx := NewContext(waker)

	result := t.future.Poll(cx)
	if !result.Done() {
		if t.notified.Load() {
			// Woken synchronously during this very poll; go straight
			// back onto the ready queue instead of parking as Idle.
			t.st.Store(int32(StateRunnable))
			t.sched.enqueue(t)
		} else {
			t.st.Store(int32(StateIdle))
		}
		return
	}

	t.st.Store(int32(StateComplete))
	t.join.complete(result.Value())
	t.sched.deregister(t.taskID)
}

// cancel marks the task cancelled without polling it again and wakes its
// join handle, which then resolves with a JoinError. The scheduler calls
// this from CancelAll, when the runtime shuts down with tasks still
// outstanding; dropping a JoinHandle does not cancel its task.
func (t *Task[T]) cancel() {
	prev := State(t.st.Swap(int32(StateCancelled)))
	if prev == StateComplete || prev == StateCancelled {
		t.st.Store(int32(prev))
		return
	}
	t.join.cancel()
	t.sched.deregister(t.taskID)
}
