package ioruntime

import (
	"testing"

	"github.com/behrlich/ioruntime/internal/sched"
)

type constFuture[T any] struct {
	v     T
	ready bool
}

func (f *constFuture[T]) Poll(cx *sched.Context) sched.PollResult[T] {
	if !f.ready {
		return sched.Pending[T]()
	}
	return sched.Ready(f.v)
}

func TestJoin2WaitsForBothSides(t *testing.T) {
	a := &constFuture[int]{v: 1}
	b := &constFuture[string]{v: "x"}
	j := Join2[int, string](a, b)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	if r := j.Poll(cx); r.Done() {
		t.Fatal("expected Pending while both sides are unready")
	}

	a.ready = true
	if r := j.Poll(cx); r.Done() {
		t.Fatal("expected Pending while b is still unready")
	}

	b.ready = true
	r := j.Poll(cx)
	if !r.Done() {
		t.Fatal("expected Ready once both sides resolved")
	}
	if r.Value().First != 1 || r.Value().Second != "x" {
		t.Fatalf("Pair = %+v, want {1 x}", r.Value())
	}
}

func TestJoin2DoesNotRepollAnAlreadyResolvedSide(t *testing.T) {
	a := &constFuture[int]{v: 1, ready: true}
	b := &constFuture[int]{v: 2}
	j := Join2[int, int](a, b)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	j.Poll(cx)

	a.v = 99 // if Join2 re-polled a it would pick this up
	b.ready = true
	r := j.Poll(cx)
	if !r.Done() || r.Value().First != 1 {
		t.Fatalf("Pair.First = %d, want 1 (a's first resolved value)", r.Value().First)
	}
}

func TestJoin3WaitsForAllThree(t *testing.T) {
	a := &constFuture[int]{v: 1, ready: true}
	b := &constFuture[int]{v: 2, ready: true}
	c := &constFuture[int]{v: 3}
	j := Join3[int, int, int](a, b, c)

	cx := sched.NewContext(sched.NewWaker(func() {}))
	if r := j.Poll(cx); r.Done() {
		t.Fatal("expected Pending while c is unready")
	}
	c.ready = true
	r := j.Poll(cx)
	if !r.Done() {
		t.Fatal("expected Ready once all three resolved")
	}
	if r.Value() != (Triple[int, int, int]{First: 1, Second: 2, Third: 3}) {
		t.Fatalf("Triple = %+v, want {1 2 3}", r.Value())
	}
}
