// Package unit holds deterministic cross-package property tests that
// don't need a live kernel ring: use-after-free, double-completion and
// cancel-idempotence on the op registry, and timer fire-order on the
// wheel. Package-specific unit tests live alongside their package
// instead (internal/op/*_test.go and so on); this package exercises
// properties at the boundary between two or more packages, without
// needing /dev access.
package unit

import (
	"testing"

	"github.com/behrlich/ioruntime/internal/op"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/sqe"
	"github.com/behrlich/ioruntime/internal/timer"
	"github.com/behrlich/ioruntime/ioerr"
)

type fakeOpAble struct{}

func (fakeOpAble) BuildSubmissionEntry(e *sqe.Entry) {}

type fakeSubmitter struct {
	cancelled []uint64
}

func (s *fakeSubmitter) Submit(build func(e *sqe.Entry)) error { return nil }

func (s *fakeSubmitter) SubmitCancel(targetUserData uint64) error {
	s.cancelled = append(s.cancelled, targetUserData)
	return nil
}

// TestDoubleCompletionAborts verifies a slot delivered twice (a buggy
// or adversarial kernel) aborts the second Deliver instead of silently
// clobbering or dropping the result the first completion already armed.
func TestDoubleCompletionAborts(t *testing.T) {
	reg := op.NewRegistry()
	index, generation := reg.Reserve()
	userData := op.UserData(index, generation)

	reg.Deliver(userData, 5, 0)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected the second Deliver to panic")
		}
		ferr, ok := r.(*ioerr.Error)
		if !ok {
			t.Fatalf("recovered %T, want *ioerr.Error", r)
		}
		if ferr.Code != ioerr.CodeFatal {
			t.Errorf("Code = %v, want CodeFatal", ferr.Code)
		}
	}()
	reg.Deliver(userData, 99, 0)
}

// TestUnknownUserDataAborts verifies a completion addressed to a slot
// index the registry never allocated aborts rather than being dropped.
func TestUnknownUserDataAborts(t *testing.T) {
	reg := op.NewRegistry()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Deliver to panic on an unknown slot index")
		}
		ferr, ok := r.(*ioerr.Error)
		if !ok {
			t.Fatalf("recovered %T, want *ioerr.Error", r)
		}
		if ferr.Code != ioerr.CodeFatal {
			t.Errorf("Code = %v, want CodeFatal", ferr.Code)
		}
	}()
	reg.Deliver(op.UserData(9999, 0), 1, 0)
}

// TestUseAfterFreeStaleGenerationIgnored reuses a slot index after the
// original op has been freed and confirms a completion still carrying
// the old generation is dropped rather than corrupting the new
// occupant's state.
func TestUseAfterFreeStaleGenerationIgnored(t *testing.T) {
	reg := op.NewRegistry()
	cx := sched.NewContext(sched.NewWaker(func() {}))

	staleIndex, staleGen := reg.Reserve()
	reg.Deliver(op.UserData(staleIndex, staleGen), 1, 0)
	if _, ready := reg.Poll(staleIndex, staleGen, cx); !ready {
		t.Fatal("expected first reservation to complete")
	}
	reg.Free(staleIndex, staleGen)

	newIndex, newGen := reg.Reserve()
	if newIndex != staleIndex {
		t.Skip("free list did not reuse the freed index; nothing to test here")
	}

	// A completion tagged with the stale generation must not resolve
	// the new occupant of the same slot index.
	reg.Deliver(op.UserData(staleIndex, staleGen), 77, 0)
	if _, ready := reg.Poll(newIndex, newGen, cx); ready {
		t.Fatal("stale-generation completion incorrectly resolved the new occupant")
	}
}

// TestCancelIsIdempotent verifies calling Op.Cancel twice submits
// exactly one AsyncCancel and never panics.
func TestCancelIsIdempotent(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{}
	o, err := op.SubmitWith(reg, sub, "payload", fakeOpAble{})
	if err != nil {
		t.Fatalf("SubmitWith: %v", err)
	}

	if err := o.Cancel(); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if err := o.Cancel(); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if len(sub.cancelled) != 1 {
		t.Errorf("cancelled %d times, want exactly 1", len(sub.cancelled))
	}
}

// TestTimerFireOrderMatchesExpiry verifies timers registered out of
// order fire back in expiry order once the wheel is advanced past all
// of their deadlines.
func TestTimerFireOrderMatchesExpiry(t *testing.T) {
	clock := timer.NewClock()
	wheel := timer.NewWheel(clock, noopTimerObserver{})

	var order []int
	register := func(id int, deadlineMs int64) {
		wheel.Register(deadlineMs, sched.NewWaker(func() { order = append(order, id) }))
	}
	register(3, 300)
	register(1, 100)
	register(2, 200)

	wheel.Advance(clock.NowMs() + 1000)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

type noopTimerObserver struct{}

func (noopTimerObserver) ObserveTimerRegistered() {}
func (noopTimerObserver) ObserveTimerFired()      {}
func (noopTimerObserver) ObserveTimerCancelled()  {}
func (noopTimerObserver) ObserveWheelCascade()    {}
