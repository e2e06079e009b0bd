package op

import (
	"errors"
	"testing"

	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/sqe"
)

type fakeOpAble struct{ built bool }

func (f *fakeOpAble) BuildSubmissionEntry(e *sqe.Entry) { f.built = true }

// fakeSubmitter never actually touches the build closure's *sqe.Entry,
// since constructing a real one requires a live kernel ring; it only
// records that a submission was attempted, which is all the op-level
// logic under test here depends on.
type fakeSubmitter struct {
	submitCalls int
	cancelCalls int
	submitErr   error
	cancelErr   error
	lastCancel  uint64
}

func (s *fakeSubmitter) Submit(build func(e *sqe.Entry)) error {
	s.submitCalls++
	return s.submitErr
}

func (s *fakeSubmitter) SubmitCancel(targetUserData uint64) error {
	s.cancelCalls++
	s.lastCancel = targetUserData
	return s.cancelErr
}

func TestSubmitWithReturnsPendingThenReady(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubmitter{}
	able := &fakeOpAble{}

	o, err := SubmitWith(reg, sub, "payload", able)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.submitCalls != 1 {
		t.Errorf("submitCalls = %d, want 1", sub.submitCalls)
	}

	cx := sched.NewContext(sched.NewWaker(func() {}))
	result := o.Poll(cx)
	if result.Done() {
		t.Fatal("expected Pending before a completion is delivered")
	}

	reg.Deliver(UserData(o.index, o.generation), 3, 0)

	result = o.Poll(cx)
	if !result.Done() {
		t.Fatal("expected Ready after delivery")
	}
	if result.Value().Data != "payload" {
		t.Errorf("Data = %q, want %q", result.Value().Data, "payload")
	}
	if result.Value().Meta.Result != 3 {
		t.Errorf("Result = %d, want 3", result.Value().Meta.Result)
	}
}

func TestSubmitWithPropagatesSubmissionError(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubmitter{submitErr: errors.New("ring full")}

	_, err := SubmitWith(reg, sub, 1, &fakeOpAble{})
	if err == nil {
		t.Fatal("expected an error when submission fails")
	}
}

func TestCancelSubmitsAsyncCancelAndOrphansSlot(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubmitter{}
	o, err := SubmitWith(reg, sub, []byte("buf"), &fakeOpAble{})
	if err != nil {
		t.Fatal(err)
	}

	if err := o.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.cancelCalls != 1 {
		t.Errorf("cancelCalls = %d, want 1", sub.cancelCalls)
	}

	// The kernel eventually drains the cancelled op; Deliver should free
	// the slot rather than deliver a result to anyone.
	reg.Deliver(UserData(o.index, o.generation), -125, 0)
}

func TestOpCancellerCancelsUnderlyingOp(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubmitter{}
	o, err := SubmitWith(reg, sub, 0, &fakeOpAble{})
	if err != nil {
		t.Fatal(err)
	}

	canceller, handle := o.OpCanceller()
	if canceller.Cancelled() {
		t.Fatal("should not be cancelled yet")
	}

	if err := handle.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !canceller.Cancelled() {
		t.Error("expected Cancelled() to report true after Cancel")
	}
	if sub.cancelCalls != 1 {
		t.Errorf("cancelCalls = %d, want 1", sub.cancelCalls)
	}
}
