package io

import "testing"

func TestByteBufTracksFilledSeparatelyFromCapacity(t *testing.T) {
	b := NewByteBuf(make([]byte, 16))
	if len(b.Bytes()) != 16 {
		t.Fatalf("Bytes() len = %d, want 16", len(b.Bytes()))
	}
	b.SetFilled(4)
	if b.Filled() != 4 {
		t.Fatalf("Filled() = %d, want 4", b.Filled())
	}
	if len(b.Bytes()) != 16 {
		t.Fatalf("Bytes() len changed after SetFilled, got %d, want 16", len(b.Bytes()))
	}
}

func TestNewPooledByteBufBelowThresholdAllocatesDirectly(t *testing.T) {
	b := NewPooledByteBuf(1024)
	if len(b.Bytes()) != 1024 {
		t.Fatalf("Bytes() len = %d, want 1024", len(b.Bytes()))
	}
}

func TestNewPooledByteBufAboveThresholdUsesPool(t *testing.T) {
	b := NewPooledByteBuf(128 * 1024)
	if len(b.Bytes()) != 128*1024 {
		t.Fatalf("Bytes() len = %d, want 128KiB", len(b.Bytes()))
	}
	b.Release()
}

func TestIovecBufBuildsOneEntryPerSlice(t *testing.T) {
	a := make([]byte, 4)
	c := make([]byte, 8)
	v := NewIovecBuf([][]byte{a, c})
	iovecs := v.Iovecs()
	if len(iovecs) != 2 {
		t.Fatalf("len(Iovecs()) = %d, want 2", len(iovecs))
	}
	if iovecs[0].Len != 4 || iovecs[1].Len != 8 {
		t.Fatalf("iovec lens = [%d %d], want [4 8]", iovecs[0].Len, iovecs[1].Len)
	}
}
