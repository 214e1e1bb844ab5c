package cue

import (
	"sort"
	"sync"

	"github.com/soundrt/engine/internal/detrand"
	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/rpc"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/variable"
)

type variationKey struct {
	bank  *schema.SoundBank
	table schema.VariationTableIndex
}

// Manager owns every live Cue, the per-category admission tracker, and the
// across-play VariationSelector state. It is the runtime counterpart of
// the bank/engine schema: schema is immutable data, Manager is the
// mutable state that plays it.
type Manager struct {
	engine     *schema.Engine
	globalVars *variable.Store
	notify     *notify.Queue
	rng        *detrand.Source

	categories *CategoryTracker

	mu         sync.Mutex
	selectors  map[variationKey]*VariationSelector
	cues       map[uint64]*Cue
	nextCueID  uint64
}

// NewManager creates a Manager over engine's categories/variables/RPCs,
// publishing notifications to nq and deriving every cue's deterministic
// sub-stream from a master stream seeded by seed.
func NewManager(engine *schema.Engine, globalVars *variable.Store, nq *notify.Queue, seed uint64) *Manager {
	return &Manager{
		engine:     engine,
		globalVars: globalVars,
		notify:     nq,
		rng:        detrand.NewSource(seed),
		categories: NewCategoryTracker(engine),
		selectors:  make(map[variationKey]*VariationSelector),
		cues:       make(map[uint64]*Cue),
	}
}

func (m *Manager) selectorFor(bank *schema.SoundBank, idx schema.VariationTableIndex) *VariationSelector {
	key := variationKey{bank: bank, table: idx}
	if s, ok := m.selectors[key]; ok {
		return s
	}
	s := NewVariationSelector(&bank.VariationTables[idx], m.rng.Sub())
	m.selectors[key] = s
	return s
}

// resolveSound follows a CueData (direct Sound reference or variation
// selection) down to a concrete Sound and Category. Variation entries that
// reference a wave directly rather than a Sound are represented as a
// synthetic single-event Sound rather than special-cased throughout the
// cue package, per the "variation complex-bit as a sum type" design note.
func (m *Manager) resolveSound(bank *schema.SoundBank, def schema.CueData, interactiveVar float32) (*schema.Sound, schema.CategoryIndex, error) {
	if !def.IsVariation {
		if int(def.SoundRef) < 0 || int(def.SoundRef) >= len(bank.Sounds) {
			return nil, 0, schema.ErrInvalidBank("cue %q: sound reference out of range", def.Name)
		}
		s := &bank.Sounds[def.SoundRef]
		return s, s.Category, nil
	}

	if int(def.VariationRef) < 0 || int(def.VariationRef) >= len(bank.VariationTables) {
		return nil, 0, schema.ErrInvalidBank("cue %q: variation table reference out of range", def.Name)
	}
	selector := m.selectorFor(bank, def.VariationRef)
	idx, err := selector.Select(interactiveVar)
	if err != nil {
		return nil, 0, err
	}
	entry := bank.VariationTables[def.VariationRef].Entries[idx]
	if !entry.IsWave {
		if int(entry.Sound) < 0 || int(entry.Sound) >= len(bank.Sounds) {
			return nil, 0, schema.ErrInvalidBank("cue %q: variation sound reference out of range", def.Name)
		}
		s := &bank.Sounds[entry.Sound]
		return s, s.Category, nil
	}

	// Direct-wave variation: synthesize a single-clip, single-event Sound
	// targeting category 0 (the bank's default), since the schema carries
	// no category for a bare wave reference.
	synthetic := &schema.Sound{
		Category: 0,
		Clips: []schema.Clip{{
			Events: []schema.Event{{
				Type: schema.EventPlayWave,
				Tracks: []schema.WaveTrack{{
					WaveBank: entry.WaveBank,
					Wave:     entry.Wave,
					Weight:   1,
				}},
			}},
		}},
	}
	return synthetic, synthetic.Category, nil
}

// Play admits and starts a new Cue for bank's cueIndex-th CueData.
// interactiveVar is the current value of whatever variable an interactive
// VariationTable reads; pass 0 if the cue's definition does not use one.
func (m *Manager) Play(bank *schema.SoundBank, cueIndex int, interactiveVar float32) (*Cue, error) {
	if int(cueIndex) < 0 || cueIndex >= len(bank.Cues) {
		return nil, schema.ErrInvalidArgument("cue index %d out of range", cueIndex)
	}

	m.mu.Lock()
	def := bank.Cues[cueIndex]
	sound, category, err := m.resolveSound(bank, def, interactiveVar)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if int(category) < 0 || int(category) >= len(m.engine.Categories) {
		m.mu.Unlock()
		return nil, schema.ErrInvalidBank("cue %q: category %d out of range", def.Name, category)
	}
	cat := m.engine.Categories[category]
	m.mu.Unlock()

	categoryVolumeDB, _ := m.categories.CategoryVolumeDB(category)

	rng := m.rng.Sub()
	vars := variable.NewCueStore(m.globalVars, m.engine.Variables)

	clips := make([]*ClipInstance, len(sound.Clips))
	for i := range sound.Clips {
		clips[i] = NewClipInstance(&sound.Clips[i], rng.Sub())
	}

	c := &Cue{
		Name:              def.Name,
		bank:              bank,
		sound:             sound,
		category:          category,
		categoryVolumeDB:  categoryVolumeDB,
		Vars:              vars,
		rng:               rng,
		clips:             clips,
		soundDeltas:       rpc.NewDeltas(),
		notifyQueue:       m.notify,
		categoryFadeOutMS: cat.FadeOutMS,
		State:             StateCreated,
	}

	m.mu.Lock()
	evicted, err := m.categories.Admit(category, c)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.nextCueID++
	c.ID = m.nextCueID
	m.cues[c.ID] = c
	m.mu.Unlock()

	if evicted != nil {
		m.Stop(evicted, false)
	}

	c.mu.Lock()
	c.beginFadeIn(cat.FadeInMS)
	c.mu.Unlock()

	return c, nil
}

// Stop requests a cue stop. immediate=true bypasses any fade; otherwise
// the Category's FadeOutMS governs how long the cue remains in Stopping.
func (m *Manager) Stop(c *Cue, immediate bool) {
	c.RequestStop(immediate, c.categoryFadeOutMS)
	if c.IsLive() {
		return
	}
	// A stop with no fade finalizes the cue here: Tick skips cues that are
	// already Stopped, so it would never release their category slot.
	m.mu.Lock()
	_, tracked := m.cues[c.ID]
	delete(m.cues, c.ID)
	m.mu.Unlock()
	if tracked {
		m.categories.Remove(c.category, c)
		m.notify.Publish(notify.Event{Kind: notify.KindCueStop, CueID: c.ID})
	}
}

// LiveCount returns the number of cues counted against a category's
// instance limit right now.
func (m *Manager) LiveCount(idx schema.CategoryIndex) int {
	return m.categories.LiveCount(idx)
}

// Tick advances every live cue by deltaMS, publishes marker and stop
// notifications, and returns the wave-play requests issued this quantum
// (keyed by the cue that issued them) for the mixer to realize. Finalized
// cues are removed from category bookkeeping and the live cue table.
func (m *Manager) Tick(deltaMS int64) map[*Cue][]WaveRequest {
	m.mu.Lock()
	live := make([]*Cue, 0, len(m.cues))
	for _, c := range m.cues {
		live = append(live, c)
	}
	m.mu.Unlock()
	// Cue.ID is assigned in ascending creation order, so sorting by ID
	// gives a deterministic cue-creation-order sequence for this tick's
	// marker/stop notifications, instead of Go's unordered map iteration.
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	plays := make(map[*Cue][]WaveRequest)
	for _, c := range live {
		markers, p, stopped := c.Tick(deltaMS)
		for _, mk := range markers {
			m.notify.Publish(notify.Event{Kind: notify.KindMarkerReached, CueID: c.ID, MarkerID: mk})
		}
		if len(p) > 0 {
			plays[c] = p
		}
		if stopped {
			m.categories.Remove(c.category, c)
			m.notify.Publish(notify.Event{Kind: notify.KindCueStop, CueID: c.ID})
			m.mu.Lock()
			delete(m.cues, c.ID)
			m.mu.Unlock()
		}
	}
	return plays
}
