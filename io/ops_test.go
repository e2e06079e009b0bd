package io

import (
	"syscall"
	"testing"

	"github.com/behrlich/ioruntime/internal/fd"
	"github.com/behrlich/ioruntime/internal/op"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/sqe"
)

// fakeSubmitter mirrors internal/op/op_test.go's own fake: it never
// touches the build closure's *sqe.Entry, since constructing a real one
// needs a live kernel ring.
type fakeSubmitter struct {
	submitErr error
}

func (s *fakeSubmitter) Submit(build func(e *sqe.Entry)) error { return s.submitErr }
func (s *fakeSubmitter) SubmitCancel(targetUserData uint64) error { return nil }

func TestReadFillsBufOnSuccessfulCompletion(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{}
	buf := NewByteBuf(make([]byte, 16))

	fut, err := Read(reg, sub, fd.New(3, nil), buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	cx := sched.NewContext(sched.NewWaker(func() {}))
	r := fut.Poll(cx)
	if r.Done() {
		t.Fatal("expected Pending before a completion is delivered")
	}

	reg.Deliver(lastUserData(reg), 12, 0)

	r = fut.Poll(cx)
	if !r.Done() {
		t.Fatal("expected Ready after delivery")
	}
	if r.Value().N != 12 || r.Value().Err != nil {
		t.Fatalf("Result = %+v, want {N:12 Err:nil}", r.Value())
	}
	if buf.Filled() != 12 {
		t.Fatalf("buf.Filled() = %d, want 12 (onDone must call SetFilled)", buf.Filled())
	}
}

func TestWriteTranslatesNegativeResultToError(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{}
	buf := NewByteBuf([]byte("hello"))

	fut, err := Write(reg, sub, fd.New(3, nil), buf, 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	cx := sched.NewContext(sched.NewWaker(func() {}))
	reg.Deliver(lastUserData(reg), -int32(syscall.EBADF), 0)

	r := fut.Poll(cx)
	if !r.Done() {
		t.Fatal("expected Ready after delivery")
	}
	if r.Value().Err == nil {
		t.Fatal("expected a non-nil Err for a negative kernel result")
	}
}

func TestReadHoldsFdCloneUntilCompletion(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{}
	f := fd.New(3, nil)
	buf := NewByteBuf(make([]byte, 16))

	fut, err := Read(reg, sub, f, buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if _, ok := f.TryUnwrap(); ok {
		t.Fatal("expected TryUnwrap to fail while the op holds its own clone")
	}

	cx := sched.NewContext(sched.NewWaker(func() {}))
	reg.Deliver(lastUserData(reg), 0, 0)
	fut.Poll(cx)

	if _, ok := f.TryUnwrap(); !ok {
		t.Fatal("expected the op's clone to be released once the completion lands")
	}
}

func TestCancelReleasesFdClone(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{}
	f := fd.New(3, nil)
	buf := NewByteBuf(make([]byte, 16))

	fut, err := Read(reg, sub, f, buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	cancellable := fut.(interface{ Cancel() error })
	if err := cancellable.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, ok := f.TryUnwrap(); !ok {
		t.Fatal("expected the op's clone to be released once Cancel is called")
	}
}

func TestAcceptSubmissionErrorIsPropagated(t *testing.T) {
	reg := op.NewRegistry()
	sub := &fakeSubmitter{submitErr: syscall.EAGAIN}

	if _, err := Accept(reg, sub, fd.New(3, nil), 0); err == nil {
		t.Fatal("expected Accept to propagate the submission error")
	}
}

// lastUserData recovers the user-data of the most recently reserved
// slot, mirroring how a real driver would derive it from the sqe this
// package's OpAble just built (which this fake submitter never
// actually inspects).
func lastUserData(reg *op.Registry) uint64 {
	return op.UserData(reg.Len()-1, 0)
}
