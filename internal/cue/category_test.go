package cue

import (
	"testing"

	"github.com/soundrt/engine/internal/schema"
)

func threeLevelEngine() *schema.Engine {
	return &schema.Engine{
		Categories: []schema.Category{
			{Name: "Leaf", VolumeEncoded: 170, Parent: 1, MaxInstances: 2, InstanceBehavior: schema.BehaviorFailNew},
			{Name: "Mid", VolumeEncoded: 190, Parent: 2},
			{Name: "Root", VolumeEncoded: 180, Parent: schema.NoIndex},
		},
	}
}

func TestCategoryVolumeDBSumsChain(t *testing.T) {
	tr := NewCategoryTracker(threeLevelEngine())
	got, err := tr.CategoryVolumeDB(0)
	if err != nil {
		t.Fatalf("CategoryVolumeDB: %v", err)
	}
	want := EncodedVolumeToDB(170) + EncodedVolumeToDB(190) + EncodedVolumeToDB(180)
	if !approxEqual(got, want, 0.001) {
		t.Fatalf("CategoryVolumeDB = %v, want %v", got, want)
	}
}

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func newCueStub(t *testing.T, priority uint8) *Cue {
	t.Helper()
	return &Cue{sound: &schema.Sound{Priority: priority}, State: StatePlaying}
}

func TestAdmitWithinLimitNeverEvicts(t *testing.T) {
	e := threeLevelEngine()
	tr := NewCategoryTracker(e)
	a := newCueStub(t, 1)
	b := newCueStub(t, 1)
	if evicted, err := tr.Admit(0, a); err != nil || evicted != nil {
		t.Fatalf("first admit: evicted=%v err=%v", evicted, err)
	}
	if evicted, err := tr.Admit(0, b); err != nil || evicted != nil {
		t.Fatalf("second admit: evicted=%v err=%v", evicted, err)
	}
	if tr.LiveCount(0) != 2 {
		t.Fatalf("LiveCount = %d, want 2", tr.LiveCount(0))
	}
}

func TestAdmitFailNewRejectsThird(t *testing.T) {
	e := threeLevelEngine()
	tr := NewCategoryTracker(e)
	_, _ = tr.Admit(0, newCueStub(t, 1))
	_, _ = tr.Admit(0, newCueStub(t, 1))
	_, err := tr.Admit(0, newCueStub(t, 1))
	if !schema.Is(err, schema.KindInstanceLimit) {
		t.Fatalf("expected InstanceLimit, got %v", err)
	}
	if tr.LiveCount(0) != 2 {
		t.Fatalf("LiveCount = %d, want 2 (unchanged)", tr.LiveCount(0))
	}
}

func TestAdmitReplaceOldestEvictsFirst(t *testing.T) {
	e := threeLevelEngine()
	e.Categories[0].InstanceBehavior = schema.BehaviorReplaceOldest
	tr := NewCategoryTracker(e)
	first := newCueStub(t, 1)
	second := newCueStub(t, 1)
	third := newCueStub(t, 1)
	_, _ = tr.Admit(0, first)
	_, _ = tr.Admit(0, second)
	evicted, err := tr.Admit(0, third)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if evicted != first {
		t.Fatalf("expected oldest (first) to be evicted")
	}
	if tr.LiveCount(0) != 2 {
		t.Fatalf("LiveCount = %d, want 2", tr.LiveCount(0))
	}
}

func TestAdmitReplaceLowestPriority(t *testing.T) {
	e := threeLevelEngine()
	e.Categories[0].InstanceBehavior = schema.BehaviorReplaceLowestPriority
	tr := NewCategoryTracker(e)
	low := newCueStub(t, 1)
	high := newCueStub(t, 200)
	_, _ = tr.Admit(0, low)
	_, _ = tr.Admit(0, high)
	incoming := newCueStub(t, 50)
	evicted, err := tr.Admit(0, incoming)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if evicted != low {
		t.Fatalf("expected lowest-priority cue evicted")
	}
}
