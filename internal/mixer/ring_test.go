package mixer

import "testing"

func TestRingWriteReadRoundTrip(t *testing.T) {
	r := newRing(8)
	n := r.Write([]float32{1, 2, 3, 4})
	if n != 4 {
		t.Fatalf("Write = %d, want 4", n)
	}
	out := make([]float32, 4)
	n = r.Read(out)
	if n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}
	for i, v := range out {
		if v != float32(i+1) {
			t.Fatalf("out[%d] = %v, want %v", i, v, i+1)
		}
	}
}

func TestRingWriteStopsAtCapacity(t *testing.T) {
	r := newRing(4)
	n := r.Write([]float32{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Fatalf("Write = %d, want 4 (capacity-limited)", n)
	}
	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4", r.Len())
	}
}

func TestRingWrapsAroundAfterPartialDrain(t *testing.T) {
	r := newRing(4)
	r.Write([]float32{1, 2, 3})
	drained := make([]float32, 2)
	r.Read(drained)
	r.Write([]float32{4, 5})

	out := make([]float32, 3)
	n := r.Read(out)
	if n != 3 {
		t.Fatalf("Read = %d, want 3", n)
	}
	want := []float32{3, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestRingReadEmptyReturnsZero(t *testing.T) {
	r := newRing(4)
	out := make([]float32, 2)
	if n := r.Read(out); n != 0 {
		t.Fatalf("Read on empty ring = %d, want 0", n)
	}
}
