package detrand

import "testing"

func TestPCG32Deterministic(t *testing.T) {
	a := NewPCG32(42)
	b := NewPCG32(42)
	for i := 0; i < 100; i++ {
		if a.Uint32() != b.Uint32() {
			t.Fatalf("sequence diverged at step %d", i)
		}
	}
}

func TestPCG32DifferentSeeds(t *testing.T) {
	a := NewPCG32(1)
	b := NewPCG32(2)
	same := true
	for i := 0; i < 8; i++ {
		if a.Uint32() != b.Uint32() {
			same = false
		}
	}
	if same {
		t.Fatalf("distinct seeds produced identical streams")
	}
}

func TestSourceSubIsIndependentButDeterministic(t *testing.T) {
	s1 := NewSource(7)
	sub1 := s1.Sub()

	s2 := NewSource(7)
	sub2 := s2.Sub()

	for i := 0; i < 20; i++ {
		if sub1.Intn(1000) != sub2.Intn(1000) {
			t.Fatalf("Sub() streams diverged at step %d despite identical parent seed", i)
		}
	}
}

func TestBoundedWithinRange(t *testing.T) {
	p := NewPCG32(123)
	for i := 0; i < 1000; i++ {
		v := p.Bounded(7)
		if v >= 7 {
			t.Fatalf("Bounded(7) returned %d", v)
		}
	}
}

func TestWeightedIndexZeroWeightsNeverChosen(t *testing.T) {
	s := NewSource(99)
	weights := []float32{0, 1, 0, 0}
	for i := 0; i < 200; i++ {
		idx := s.WeightedIndex(weights)
		if idx != 1 {
			t.Fatalf("WeightedIndex chose %d, only index 1 has nonzero weight", idx)
		}
	}
}

func TestWeightedIndexAllZeroReturnsNegOne(t *testing.T) {
	s := NewSource(1)
	if idx := s.WeightedIndex([]float32{0, 0, 0}); idx != -1 {
		t.Fatalf("expected -1, got %d", idx)
	}
}

func TestWeightedIndexRespectsProportions(t *testing.T) {
	s := NewSource(555)
	weights := []float32{1, 9}
	counts := make([]int, 2)
	const trials = 5000
	for i := 0; i < trials; i++ {
		counts[s.WeightedIndex(weights)]++
	}
	// Index 1 should dominate heavily given a 9:1 weighting.
	if counts[1] < counts[0]*4 {
		t.Fatalf("weighted sampling did not favor heavier weight: %v", counts)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	s := NewSource(3)
	perm := s.Shuffle(10)
	seen := make([]bool, 10)
	for _, v := range perm {
		if v < 0 || v >= 10 || seen[v] {
			t.Fatalf("Shuffle(10) produced invalid permutation: %v", perm)
		}
		seen[v] = true
	}
}

func TestShuffleDeterministic(t *testing.T) {
	a := NewSource(88).Shuffle(20)
	b := NewSource(88).Shuffle(20)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Shuffle not deterministic for identical seed")
		}
	}
}
