// Package cue implements cue and category runtime state: the admission
// control a Category applies when its instance limit would be exceeded,
// variation-table selection, and the per-tick event dispatch that drives a
// playing Cue forward. It holds no audio sample data; that lives in
// package wave and is pulled by package mixer.
package cue

import (
	"sync"

	"github.com/soundrt/engine/internal/schema"
)

// EncodedVolumeToDB converts the schema's integer-encoded volume (0-255,
// 180 == 0 dB) to a dB offset. The encoding itself stays in the schema per
// spec.md §9; this is the one conversion point, applied only when a
// parameter is actually needed by the mixer or by admission comparisons.
func EncodedVolumeToDB(v uint8) float32 {
	return (float32(v) - 180) * (96.0 / 180.0)
}

// CategoryTracker owns the live-instance bookkeeping for every Category in
// an Engine schema and decides admission when a Play would exceed a
// Category's maxInstances.
type CategoryTracker struct {
	engine *schema.Engine

	mu   sync.Mutex
	live map[schema.CategoryIndex][]*Cue
}

// NewCategoryTracker creates a tracker with no live cues.
func NewCategoryTracker(engine *schema.Engine) *CategoryTracker {
	return &CategoryTracker{engine: engine, live: make(map[schema.CategoryIndex][]*Cue)}
}

// LiveCount returns the number of cues currently counted against idx's
// instance limit.
func (t *CategoryTracker) LiveCount(idx schema.CategoryIndex) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live[idx])
}

// CategoryVolumeDB sums the dB offsets of idx and every ancestor, giving
// the multiplicative volume propagation spec.md §3 requires (dB addition
// is linear-gain multiplication).
func (t *CategoryTracker) CategoryVolumeDB(idx schema.CategoryIndex) (float32, error) {
	chain, err := t.engine.GetCategoryChain(idx)
	if err != nil {
		return 0, err
	}
	var total float32
	for _, c := range chain {
		total += EncodedVolumeToDB(t.engine.Categories[c].VolumeEncoded)
	}
	return total, nil
}

// Admit registers newCue against idx's instance limit. If the limit is not
// exceeded, it returns (nil, nil). If it is exceeded, behavior determines
// the outcome: fail-new rejects with InstanceLimit; the replacement
// policies evict one existing live cue (returned so the caller can fade it
// out) and admit newCue in its place.
func (t *CategoryTracker) Admit(idx schema.CategoryIndex, newCue *Cue) (evicted *Cue, err error) {
	if int(idx) < 0 || int(idx) >= len(t.engine.Categories) {
		return nil, schema.ErrInvalidArgument("category index %d out of range", idx)
	}
	cat := t.engine.Categories[idx]

	t.mu.Lock()
	defer t.mu.Unlock()

	live := t.live[idx]
	if cat.MaxInstances == 0 || len(live) < int(cat.MaxInstances) {
		t.live[idx] = append(live, newCue)
		return nil, nil
	}

	switch cat.InstanceBehavior {
	case schema.BehaviorFailNew:
		return nil, schema.ErrInstanceLimit("category %q at limit (%d)", cat.Name, cat.MaxInstances)

	case schema.BehaviorReplaceOldest:
		oldest := live[0]
		live = append(live[:0:0], live[1:]...)
		live = append(live, newCue)
		t.live[idx] = live
		return oldest, nil

	case schema.BehaviorReplaceQuietest:
		// Quietest-voice eviction, generalized from the teacher's
		// stealVoice() envelope comparison to instance volume.
		qi := 0
		qv := live[0].CurrentVolumeDB()
		for i := 1; i < len(live); i++ {
			v := live[i].CurrentVolumeDB()
			if v < qv {
				qv = v
				qi = i
			}
		}
		return t.replaceAt(idx, qi, newCue), nil

	case schema.BehaviorReplaceLowestPriority:
		pi := 0
		pv := live[0].Priority()
		for i := 1; i < len(live); i++ {
			v := live[i].Priority()
			if v < pv {
				pv = v
				pi = i
			}
		}
		return t.replaceAt(idx, pi, newCue), nil

	default:
		return nil, schema.ErrInvalidBank("category %q: unknown instance behavior", cat.Name)
	}
}

// replaceAt must be called with t.mu held.
func (t *CategoryTracker) replaceAt(idx schema.CategoryIndex, pos int, newCue *Cue) *Cue {
	live := t.live[idx]
	evicted := live[pos]
	live[pos] = newCue
	t.live[idx] = live
	return evicted
}

// Remove drops cue from idx's live bookkeeping, freeing a slot for future
// admission. Called when a cue finishes stopping (fade complete or
// immediate stop).
func (t *CategoryTracker) Remove(idx schema.CategoryIndex, target *Cue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := t.live[idx]
	for i, c := range live {
		if c == target {
			t.live[idx] = append(live[:i], live[i+1:]...)
			return
		}
	}
}
