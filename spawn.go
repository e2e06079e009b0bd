package ioruntime

import "github.com/behrlich/ioruntime/internal/sched"

// Spawn schedules future onto rt's ready queue and returns a JoinHandle
// resolving with its output once rt's BlockOn loop polls it to
// completion.
func Spawn[T any](rt *Runtime, future sched.Future[T]) *sched.JoinHandle[T] {
	return sched.Spawn(rt.scheduler, future)
}

// BlockOn drives rt's scheduler until root completes, parking the
// kernel ring (and racing the timer wheel, if enabled) whenever the
// ready queue empties. It must be called from rt's owning thread.
func BlockOn[T any](rt *Runtime, root sched.Future[T]) T {
	return sched.BlockOn(rt.scheduler, root)
}

// YieldNow returns a future that resolves on the next scheduling round,
// letting other ready tasks on rt run first.
func YieldNow(rt *Runtime) sched.Future[struct{}] {
	return sched.YieldNow(rt.scheduler)
}
