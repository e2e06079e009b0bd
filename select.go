package ioruntime

import "github.com/behrlich/ioruntime/internal/sched"

// Cancellable is implemented by futures that can abandon in-flight work
// when they lose a select!. Futures that don't implement it are simply
// dropped; their side effects (if any) run to completion in the
// background.
type Cancellable interface {
	Cancel() error
}

// Selected is the output of Select2: exactly one of First/Second holds
// the winning branch's value, indicated by FirstReady.
type Selected[A, B any] struct {
	FirstReady bool
	First      A
	Second     B
}

// Select2 polls a and b on the same task and resolves with whichever
// completes first (select!(a, b)). The loser is polled no further; if it
// implements Cancellable, Cancel is called so its in-flight op can be
// torn down instead of left to finish unobserved.
func Select2[A, B any](a sched.Future[A], b sched.Future[B]) sched.Future[Selected[A, B]] {
	return &select2[A, B]{a: a, b: b}
}

type select2[A, B any] struct {
	a sched.Future[A]
	b sched.Future[B]
}

func (s *select2[A, B]) Poll(cx *sched.Context) sched.PollResult[Selected[A, B]] {
	if s.a != nil {
		if r := s.a.Poll(cx); r.Done() {
			cancelIfPossible(s.b)
			s.a, s.b = nil, nil
			return sched.Ready(Selected[A, B]{FirstReady: true, First: r.Value()})
		}
	}
	if s.b != nil {
		if r := s.b.Poll(cx); r.Done() {
			cancelIfPossible(s.a)
			s.a, s.b = nil, nil
			return sched.Ready(Selected[A, B]{FirstReady: false, Second: r.Value()})
		}
	}
	return sched.Pending[Selected[A, B]]()
}

func cancelIfPossible(f any) {
	if f == nil {
		return
	}
	if c, ok := f.(Cancellable); ok {
		_ = c.Cancel()
	}
}
