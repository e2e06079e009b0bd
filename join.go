package ioruntime

import "github.com/behrlich/ioruntime/internal/sched"

// Pair is the output of Join2.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is the output of Join3.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Join2 concurrently polls a and b on the same task (join!(a, b)),
// resolving once both have completed. Each sub-future is polled with
// the same Context every round, so whichever one the waker targets gets
// re-polled along with its still-pending sibling.
func Join2[A, B any](a sched.Future[A], b sched.Future[B]) sched.Future[Pair[A, B]] {
	return &join2[A, B]{a: a, b: b}
}

type join2[A, B any] struct {
	a            sched.Future[A]
	b            sched.Future[B]
	aDone, bDone bool
	aVal         A
	bVal         B
}

func (j *join2[A, B]) Poll(cx *sched.Context) sched.PollResult[Pair[A, B]] {
	if !j.aDone {
		if r := j.a.Poll(cx); r.Done() {
			j.aVal, j.aDone = r.Value(), true
		}
	}
	if !j.bDone {
		if r := j.b.Poll(cx); r.Done() {
			j.bVal, j.bDone = r.Value(), true
		}
	}
	if j.aDone && j.bDone {
		return sched.Ready(Pair[A, B]{First: j.aVal, Second: j.bVal})
	}
	return sched.Pending[Pair[A, B]]()
}

// Join3 concurrently polls three sibling futures to completion.
func Join3[A, B, C any](a sched.Future[A], b sched.Future[B], c sched.Future[C]) sched.Future[Triple[A, B, C]] {
	return &join3[A, B, C]{a: a, b: b, c: c}
}

type join3[A, B, C any] struct {
	a            sched.Future[A]
	b            sched.Future[B]
	c            sched.Future[C]
	aDone, bDone bool
	cDone        bool
	aVal         A
	bVal         B
	cVal         C
}

func (j *join3[A, B, C]) Poll(cx *sched.Context) sched.PollResult[Triple[A, B, C]] {
	if !j.aDone {
		if r := j.a.Poll(cx); r.Done() {
			j.aVal, j.aDone = r.Value(), true
		}
	}
	if !j.bDone {
		if r := j.b.Poll(cx); r.Done() {
			j.bVal, j.bDone = r.Value(), true
		}
	}
	if !j.cDone {
		if r := j.c.Poll(cx); r.Done() {
			j.cVal, j.cDone = r.Value(), true
		}
	}
	if j.aDone && j.bDone && j.cDone {
		return sched.Ready(Triple[A, B, C]{First: j.aVal, Second: j.bVal, Third: j.cVal})
	}
	return sched.Pending[Triple[A, B, C]]()
}
