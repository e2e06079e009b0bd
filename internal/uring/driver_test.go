package uring

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/metrics"
	"github.com/behrlich/ioruntime/internal/sqe"
)

// fakeRing satisfies KernelRing without a live kernel ring, recording
// what was submitted and letting the test hand back completions on
// demand, the same shape as op_test.go's fakeSubmitter.
type fakeRing struct {
	submitted []func(e *sqe.Entry)
	cancelled []uint64
	completed []fakeCompletion
}

type fakeCompletion struct {
	userData uint64
	result   int32
	flags    uint32
}

func (r *fakeRing) Fd() int      { return -1 }
func (r *fakeRing) Close() error { return nil }

func (r *fakeRing) Submit(build func(e *sqe.Entry)) error {
	r.submitted = append(r.submitted, build)
	return nil
}

func (r *fakeRing) SubmitCancel(targetUserData uint64) error {
	r.cancelled = append(r.cancelled, targetUserData)
	return nil
}

func (r *fakeRing) SubmitAndWait(waitNr uint32) error { return nil }

func (r *fakeRing) DispatchCompletions(deliver func(userData uint64, result int32, flags uint32)) uint32 {
	pending := r.completed
	r.completed = nil
	for _, c := range pending {
		deliver(c.userData, c.result, c.flags)
	}
	return uint32(len(pending))
}

func newTestDriver(t *testing.T, ring *fakeRing) (*Driver, int, int) {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	log := logging.NewLogger(nil)
	d := newDriver(ring, fds[1], log, metrics.NewObserver(metrics.New()))
	return d, fds[0], fds[1]
}

func TestNewDriverArmsEventFdPoll(t *testing.T) {
	ring := &fakeRing{}
	newTestDriver(t, ring)

	if len(ring.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1 (the initial poll arm)", len(ring.submitted))
	}
}

func TestSubmitDelegatesToRingAndRecordsMetric(t *testing.T) {
	ring := &fakeRing{}
	d, _, _ := newTestDriver(t, ring)

	m := metrics.New()
	d.obs = metrics.NewObserver(m)

	called := false
	err := d.Submit(func(e *sqe.Entry) { called = true })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for _, build := range ring.submitted {
		build(nil)
	}
	if !called {
		t.Fatal("build func never invoked by fake ring")
	}
	if m.Submitted.Load() == 0 {
		t.Fatal("Submitted counter not incremented")
	}
}

func TestSubmitCancelDelegatesToRing(t *testing.T) {
	ring := &fakeRing{}
	d, _, _ := newTestDriver(t, ring)

	if err := d.SubmitCancel(42); err != nil {
		t.Fatalf("SubmitCancel: %v", err)
	}
	if len(ring.cancelled) != 1 || ring.cancelled[0] != 42 {
		t.Fatalf("cancelled = %v, want [42]", ring.cancelled)
	}
}

func TestDispatchDeliversOrdinaryCompletionToRegistry(t *testing.T) {
	ring := &fakeRing{}
	d, _, _ := newTestDriver(t, ring)

	index, generation := d.reg.Reserve()
	userData := indexToUserData(index, generation)

	ring.completed = append(ring.completed, fakeCompletion{userData: userData, result: 7, flags: 0})
	if err := d.Park(); err != nil {
		t.Fatalf("Park: %v", err)
	}

	meta, ok := d.reg.Poll(index, generation, nil)
	if !ok {
		t.Fatalf("expected completion to already be armed after dispatch")
	}
	if meta.Result != 7 {
		t.Fatalf("Result = %d, want 7", meta.Result)
	}
}

func TestDispatchRearmsPollAfterEventFdCompletion(t *testing.T) {
	ring := &fakeRing{}
	d, _, _ := newTestDriver(t, ring)

	ring.submitted = nil // clear the initial arm recorded in newDriver
	ring.completed = append(ring.completed, fakeCompletion{userData: eventFdUserData, result: 0, flags: 0})

	if err := d.Park(); err != nil {
		t.Fatalf("Park: %v", err)
	}

	if len(ring.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1 (the poll re-arm)", len(ring.submitted))
	}
}

func TestUnparkWritesEventFdOnce(t *testing.T) {
	ring := &fakeRing{}
	d, readFd, _ := newTestDriver(t, ring)

	d.Unpark()
	d.Unpark() // second call before drain must be a no-op (CAS guard)

	var buf [8]byte
	n, err := unix.Read(readFd, buf[:])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("read %d bytes, want 8", n)
	}
}

func indexToUserData(index int, generation uint32) uint64 {
	return uint64(generation)<<32 | uint64(uint32(index))
}
