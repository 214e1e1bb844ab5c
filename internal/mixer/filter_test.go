package mixer

import "testing"

func TestOnePolePassThroughWhenCutoffZero(t *testing.T) {
	var f onePole
	l, r := f.Process(0.5, -0.5, 0, 1, 44100)
	if l != 0.5 || r != -0.5 {
		t.Fatalf("expected pass-through, got (%v, %v)", l, r)
	}
}

func TestOnePoleSmoothsStepInput(t *testing.T) {
	var f onePole
	first, _ := f.Process(1, 1, 500, 1, 44100)
	if first <= 0 || first >= 1 {
		t.Fatalf("expected partial response on first sample, got %v", first)
	}
	var last float32
	for i := 0; i < 2000; i++ {
		last, _ = f.Process(1, 1, 500, 1, 44100)
	}
	if last < 0.99 {
		t.Fatalf("expected filter to converge near 1.0 after many samples, got %v", last)
	}
}

func TestOnePoleResetZeroesState(t *testing.T) {
	var f onePole
	f.Process(1, 1, 500, 1, 44100)
	f.Reset()
	l, r := f.Process(0, 0, 500, 1, 44100)
	if l != 0 || r != 0 {
		t.Fatalf("expected zeroed state after Reset, got (%v, %v)", l, r)
	}
}
