package ioruntime

import (
	"testing"

	"github.com/behrlich/ioruntime/internal/sched"
)

type cancellableFuture[T any] struct {
	constFuture[T]
	cancelCalls int
}

func (f *cancellableFuture[T]) Cancel() error {
	f.cancelCalls++
	return nil
}

func TestSelect2ResolvesOnFirstReadySide(t *testing.T) {
	a := &cancellableFuture[int]{}
	b := &cancellableFuture[string]{constFuture: constFuture[string]{v: "done", ready: true}}
	s := Select2[int, string](a, b)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	r := s.Poll(cx)
	if !r.Done() {
		t.Fatal("expected Ready once b resolved")
	}
	if r.Value().FirstReady {
		t.Fatal("FirstReady = true, want false (b won)")
	}
	if r.Value().Second != "done" {
		t.Fatalf("Second = %q, want %q", r.Value().Second, "done")
	}
}

func TestSelect2CancelsTheLoser(t *testing.T) {
	a := &cancellableFuture[int]{constFuture: constFuture[int]{v: 5, ready: true}}
	b := &cancellableFuture[int]{}
	s := Select2[int, int](a, b)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	r := s.Poll(cx)
	if !r.Done() || !r.Value().FirstReady || r.Value().First != 5 {
		t.Fatalf("result = %+v, want FirstReady=true First=5", r.Value())
	}
	if b.cancelCalls != 1 {
		t.Fatalf("loser cancelled %d times, want 1", b.cancelCalls)
	}
}

func TestSelect2PendingWhenNeitherSideIsReady(t *testing.T) {
	a := &cancellableFuture[int]{}
	b := &cancellableFuture[int]{}
	s := Select2[int, int](a, b)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	if r := s.Poll(cx); r.Done() {
		t.Fatal("expected Pending when neither side is ready")
	}
}
