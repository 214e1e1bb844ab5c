// Package variable implements the named-scalar variable store described in
// SPEC_FULL.md §3: an engine-global store of Global variables plus a
// per-cue snapshot store for everything else. Every write clamps to the
// variable's declared [Min,Max] range; reads never observe an
// out-of-range value.
package variable

import (
	"sync"

	"github.com/soundrt/engine/internal/schema"
)

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Store holds one value per schema.Variable definition. A Store is safe for
// concurrent use: reads happen from the mix thread while writes happen from
// whatever goroutine calls AudioEngine.SetVariable.
type Store struct {
	defs   []schema.Variable
	mu     sync.RWMutex
	values []float32
}

// New creates a Store initialized to each variable's declared Initial
// value, clamped to [Min,Max] in case a bank declares an out-of-range
// default.
func New(defs []schema.Variable) *Store {
	s := &Store{
		defs:   defs,
		values: make([]float32, len(defs)),
	}
	for i, d := range defs {
		s.values[i] = clamp(d.Initial, d.Min, d.Max)
	}
	return s
}

func (s *Store) checkIndex(idx schema.VariableIndex) error {
	if int(idx) < 0 || int(idx) >= len(s.defs) {
		return schema.ErrInvalidArgument("variable index %d out of range", idx)
	}
	return nil
}

// Get returns the variable's current value.
func (s *Store) Get(idx schema.VariableIndex) (float32, error) {
	if err := s.checkIndex(idx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[idx], nil
}

// Set writes value, clamped to the variable's range. When external is true
// (the call originates from AudioEngine.SetVariable rather than from the
// runtime's own reserved-variable refresh), writes to ReadOnly or Reserved
// variables are rejected with InvalidCall.
func (s *Store) Set(idx schema.VariableIndex, value float32, external bool) error {
	if err := s.checkIndex(idx); err != nil {
		return err
	}
	d := s.defs[idx]
	if external && d.Access&(schema.AccessReadOnly|schema.AccessReserved) != 0 {
		return schema.ErrInvalidCall("variable %q is read-only", d.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[idx] = clamp(value, d.Min, d.Max)
	return nil
}

// SetInternal bypasses the ReadOnly/Reserved guard, for writing computed
// reserved variables (NumCueInstances, AttackTime, ReleaseTime,
// OrientationAngle, Distance, DopplerPitchScalar, SpeedOfSound). The mix
// driver does not call it, so reserved variables keep whatever value was
// last written through this method.
func (s *Store) SetInternal(idx schema.VariableIndex, value float32) error {
	return s.Set(idx, value, false)
}

// Reset restores a variable to its declared Initial value.
func (s *Store) Reset(idx schema.VariableIndex) error {
	if err := s.checkIndex(idx); err != nil {
		return err
	}
	return s.SetInternal(idx, s.defs[idx].Initial)
}

// CueStore is the per-cue view of the variable space: Global variables
// route through to the shared engine Store so every cue observes the same
// value, while everything else is a private copy seeded at creation time
// and never aliases another cue's copy.
type CueStore struct {
	global *Store
	local  *Store
	defs   []schema.Variable
}

// NewCueStore snapshots defs into a fresh local store and wires it to
// global for Global-flagged variables.
func NewCueStore(global *Store, defs []schema.Variable) *CueStore {
	return &CueStore{
		global: global,
		local:  New(defs),
		defs:   defs,
	}
}

func (c *CueStore) isGlobal(idx schema.VariableIndex) bool {
	return int(idx) >= 0 && int(idx) < len(c.defs) && c.defs[idx].Access&schema.AccessGlobal != 0
}

func (c *CueStore) Get(idx schema.VariableIndex) (float32, error) {
	if c.isGlobal(idx) {
		return c.global.Get(idx)
	}
	return c.local.Get(idx)
}

func (c *CueStore) Set(idx schema.VariableIndex, value float32, external bool) error {
	if c.isGlobal(idx) {
		return c.global.Set(idx, value, external)
	}
	return c.local.Set(idx, value, external)
}

func (c *CueStore) SetInternal(idx schema.VariableIndex, value float32) error {
	return c.Set(idx, value, false)
}
