package cue

import (
	"github.com/soundrt/engine/internal/detrand"
	"github.com/soundrt/engine/internal/schema"
)

// VariationSelector holds the across-play selection state for one
// VariationTable (the ordered cursor, the shuffle queue, or the last pick
// for no-immediate-repeat). It must persist across separate Play calls on
// the same table, so the Manager keeps exactly one per (bank, table)
// rather than per Cue.
type VariationSelector struct {
	table *schema.VariationTable
	rng   *detrand.Source

	orderedNext  int
	lastPicked   int
	shuffleQueue []int
}

// NewVariationSelector creates a selector over table, driven by rng.
func NewVariationSelector(table *schema.VariationTable, rng *detrand.Source) *VariationSelector {
	return &VariationSelector{table: table, rng: rng, lastPicked: -1}
}

// Select returns the index of the chosen Variation. interactiveVar is only
// consulted for SelectInteractive tables.
func (s *VariationSelector) Select(interactiveVar float32) (int, error) {
	n := len(s.table.Entries)
	if n == 0 {
		return 0, schema.ErrInvalidBank("variation table has no entries")
	}

	switch s.table.Policy {
	case schema.SelectOrdered:
		idx := s.orderedNext % n
		s.orderedNext++
		return idx, nil

	case schema.SelectRandom:
		idx := s.selectWeighted()
		s.lastPicked = idx
		return idx, nil

	case schema.SelectRandomNoImmediateRepeat:
		if n == 1 {
			s.lastPicked = 0
			return 0, nil
		}
		for {
			idx := s.selectWeighted()
			if idx != s.lastPicked {
				s.lastPicked = idx
				return idx, nil
			}
		}

	case schema.SelectShuffle:
		if len(s.shuffleQueue) == 0 {
			s.shuffleQueue = s.rng.Shuffle(n)
		}
		idx := s.shuffleQueue[0]
		s.shuffleQueue = s.shuffleQueue[1:]
		s.lastPicked = idx
		return idx, nil

	case schema.SelectInteractive:
		for i, e := range s.table.Entries {
			if interactiveVar >= e.MinWeight && interactiveVar <= e.MaxWeight {
				s.lastPicked = i
				return i, nil
			}
		}
		// No range matched: fall back to the first entry rather than
		// failing the Play outright.
		s.lastPicked = 0
		return 0, nil

	default:
		return 0, schema.ErrInvalidBank("unknown variation selection policy")
	}
}

// selectWeighted draws a uniform probe in [0,1) and returns the entry whose
// [MinWeight,MaxWeight] cumulative-probability bracket contains it — the
// same bracket walk SelectInteractive runs against an explicit variable
// value instead of a random draw.
func (s *VariationSelector) selectWeighted() int {
	p := s.rng.Float32()
	for i, e := range s.table.Entries {
		if p >= e.MinWeight && p <= e.MaxWeight {
			return i
		}
	}
	// Rounding at the bracket edges can leave the top of [0,1) unmatched;
	// fall back to the last entry rather than failing the Play outright.
	return len(s.table.Entries) - 1
}
