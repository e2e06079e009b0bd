package sched

import "testing"

func TestJoinStateCompleteWakesWaiter(t *testing.T) {
	j := newJoinState[int]()
	woke := false
	j.waker = NewWaker(func() { woke = true })

	j.complete(5)

	if !woke {
		t.Error("expected waker to be invoked on complete")
	}
	if !j.done || j.value != 5 {
		t.Errorf("joinState = %+v", j)
	}
}

func TestJoinStateCancelSetsFlag(t *testing.T) {
	j := newJoinState[string]()
	j.cancel()

	if !j.done || !j.cancelled {
		t.Errorf("joinState = %+v", j)
	}
}

func TestJoinHandlePollPendingThenReady(t *testing.T) {
	j := newJoinState[int]()
	h := &JoinHandle[int]{state: j}

	cx := NewContext(NewWaker(func() {}))
	result := h.Poll(cx)
	if result.Done() {
		t.Fatal("expected Pending before completion")
	}

	j.complete(9)
	result = h.Poll(cx)
	if !result.Done() {
		t.Fatal("expected Ready after completion")
	}
	if result.Value().Err() != nil {
		t.Errorf("unexpected error: %v", result.Value().Err())
	}
	if result.Value().Value() != 9 {
		t.Errorf("Value() = %d, want 9", result.Value().Value())
	}
}

func TestJoinHandlePollCancelled(t *testing.T) {
	j := newJoinState[int]()
	h := &JoinHandle[int]{state: j}
	j.cancel()

	result := h.Poll(NewContext(NewWaker(func() {})))
	if !result.Done() {
		t.Fatal("expected Ready for a cancelled task")
	}
	if result.Value().Err() == nil {
		t.Error("expected a JoinError")
	}
}
