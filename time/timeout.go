package time

import (
	"time"

	"github.com/behrlich/ioruntime/internal/sched"
)

// Elapsed is returned by Timeout when the deadline wins the race against
// the wrapped future.
type Elapsed struct{}

func (Elapsed) Error() string { return "ioruntime: deadline elapsed" }

// Timeout races inner against a Sleep(d) on h's wheel. Whichever settles
// first wins; the loser is cancelled if it exposes a Cancel() error
// method (inner futures built on internal/op already do, via
// Op.Cancel/OpCanceller).
func (h Handle) Timeout(d time.Duration, inner sched.Future[any]) sched.Future[TimeoutResult] {
	return &timeoutFuture{inner: inner, sleep: h.Sleep(d)}
}

// TimeoutResult is Timeout's output: either Value holds inner's result,
// or Err is Elapsed.
type TimeoutResult struct {
	Value any
	Err   error
}

type timeoutFuture struct {
	inner sched.Future[any]
	sleep sched.Future[struct{}]
}

func (t *timeoutFuture) Poll(cx *sched.Context) sched.PollResult[TimeoutResult] {
	if t.inner != nil {
		if r := t.inner.Poll(cx); r.Done() {
			cancelIfCancellable(t.sleep)
			t.inner, t.sleep = nil, nil
			return sched.Ready(TimeoutResult{Value: r.Value()})
		}
	}
	if t.sleep != nil {
		if r := t.sleep.Poll(cx); r.Done() {
			cancelIfCancellable(t.inner)
			t.inner, t.sleep = nil, nil
			return sched.Ready(TimeoutResult{Err: Elapsed{}})
		}
	}
	return sched.Pending[TimeoutResult]()
}

func cancelIfCancellable(f any) {
	if f == nil {
		return
	}
	if c, ok := f.(interface{ Cancel() error }); ok {
		_ = c.Cancel()
	}
}
