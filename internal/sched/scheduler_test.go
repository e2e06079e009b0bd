package sched

import (
	"testing"
)

// stubDriver never has anything to park on; tests drive readiness
// directly through wakers. BlockOn still parks (via ParkTimeout) between
// rounds that leave the root future pending, so both park methods just
// count the call and return at once.
type stubDriver struct {
	parkCalls int
}

func (d *stubDriver) Park() error              { d.parkCalls++; return nil }
func (d *stubDriver) ParkTimeout(int64) error  { d.parkCalls++; return nil }

func TestSpawnAndBlockOnImmediateReady(t *testing.T) {
	s := New(&stubDriver{}, nil, nil)

	fut := FutureFunc[int](func(cx *Context) PollResult[int] { return Ready(42) })
	handle := Spawn(s, fut)

	result := BlockOn(s, handle)
	if result.Err() != nil {
		t.Fatalf("unexpected error: %v", result.Err())
	}
	if result.Value() != 42 {
		t.Errorf("Value() = %d, want 42", result.Value())
	}
}

func TestPendingThenReadyAfterWake(t *testing.T) {
	s := New(&stubDriver{}, nil, nil)

	polls := 0
	fut := FutureFunc[string](func(cx *Context) PollResult[string] {
		polls++
		if polls < 3 {
			cx.Waker().WakeOnce()
			return Pending[string]()
		}
		return Ready("done")
	})

	handle := Spawn(s, fut)
	result := BlockOn(s, handle)
	if result.Value() != "done" {
		t.Errorf("Value() = %q, want %q", result.Value(), "done")
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestCancelAllWakesJoinHandles(t *testing.T) {
	s := New(&stubDriver{}, nil, nil)

	fut := FutureFunc[int](func(cx *Context) PollResult[int] {
		cx.Waker() // recorded but never invoked; task stays Idle forever
		return Pending[int]()
	})
	handle := Spawn(s, fut)
	s.runReadyQueue() // one pass to transition the task to Idle

	s.CancelAll()

	result := BlockOn(s, handle)
	if result.Err() == nil {
		t.Fatal("expected a JoinError after CancelAll")
	}
}

func TestTaskCountReflectsLiveTasks(t *testing.T) {
	s := New(&stubDriver{}, nil, nil)
	if s.TaskCount() != 0 {
		t.Fatalf("TaskCount() = %d, want 0", s.TaskCount())
	}

	fut := FutureFunc[int](func(cx *Context) PollResult[int] { return Ready(1) })
	handle := Spawn(s, fut)
	if s.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", s.TaskCount())
	}

	BlockOn(s, handle)
	if s.TaskCount() != 0 {
		t.Errorf("TaskCount() after completion = %d, want 0", s.TaskCount())
	}
}

func TestYieldNowResumesOnNextRound(t *testing.T) {
	s := New(&stubDriver{}, nil, nil)

	var yield Future[struct{}]
	steps := 0
	fut := FutureFunc[int](func(cx *Context) PollResult[int] {
		if yield == nil {
			yield = YieldNow(s)
		}
		if !yield.Poll(cx).Done() {
			steps++
			return Pending[int]()
		}
		return Ready(steps)
	})

	handle := Spawn(s, fut)
	result := BlockOn(s, handle)
	if result.Value() != 1 {
		t.Errorf("Value() = %d, want 1 (one suspended round before resuming)", result.Value())
	}
}
