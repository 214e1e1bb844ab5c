// Package schema holds the in-memory layout of a loaded sound bank: the
// immutable schema arrays (categories, variables, RPCs, sounds, clips,
// events, variation tables) and the byte-stream loader that materializes
// them. It owns no runtime playback state — that lives in package cue.
package schema

// CategoryIndex, VariableIndex, RPCIndex and similar index types are plain
// ints into their owning bank's arrays. The loader (see loader.go) range-
// checks cue and variation-table references to sounds and variation tables;
// wave, wave-bank and sound category indices are checked only for sign, and
// RPC and DSP codes are not checked at load, so package cue bounds-checks
// those where it uses them.
type CategoryIndex int32
type VariableIndex int32
type RPCIndex int32
type DSPIndex int32
type SoundIndex int32
type ClipIndex int32
type VariationTableIndex int32
type WaveIndex int32
type WaveBankIndex int32

const NoIndex = -1

// InstanceBehavior selects the admission policy applied when a Category's
// maxInstances would be exceeded by a new Play.
type InstanceBehavior uint8

const (
	BehaviorFailNew InstanceBehavior = iota
	BehaviorReplaceOldest
	BehaviorReplaceQuietest
	BehaviorReplaceLowestPriority
)

// Category groups cues sharing an instance limit and a fade policy.
// Categories form a forest; volume propagates multiplicatively through
// Parent (NoIndex at the root).
type Category struct {
	Name             string
	MaxInstances     uint8
	FadeInMS         uint16
	FadeOutMS        uint16
	InstanceBehavior InstanceBehavior
	Parent           CategoryIndex // NoIndex if this is a root category
	VolumeEncoded    uint8         // 0-255, 180 == 0 dB
	Visibility       uint8
}

// VariableAccess is a bitset of Variable.Access flags.
type VariableAccess uint8

const (
	AccessPublic   VariableAccess = 1 << 0
	AccessReadOnly VariableAccess = 1 << 1
	AccessGlobal   VariableAccess = 1 << 2
	AccessReserved VariableAccess = 1 << 3
)

// Variable is a named scalar, clamped to [Min,Max] on every write. Global
// variables live on the AudioEngine; non-global variables are copied into
// a fresh per-cue snapshot at cue creation (they never alias the engine's
// global slots).
type Variable struct {
	Name    string
	Access  VariableAccess
	Initial float32
	Min     float32
	Max     float32
}

// CurveType selects the interpolation shape of one RPC segment.
type CurveType uint8

const (
	CurveLinear CurveType = iota
	CurveFast             // piecewise quadratic easing out
	CurveSlow             // piecewise quadratic easing in
	CurveSine             // sinusoidal ease
	CurveDiscrete         // hold y_i until x_{i+1}
)

// RPCParameter identifies which per-voice parameter an RPC targets.
// Values >= RPCParameterCount address a DSP preset parameter, named by the
// RPC's DSPParam field.
type RPCParameter uint16

const (
	ParamVolumeDB RPCParameter = iota
	ParamPitchCents
	ParamReverbSend
	ParamFilterFreqHz
	ParamFilterQ
	RPCParameterCount
)

// RPCPoint is one control point of a piecewise curve. Points within an RPC
// are strictly increasing in X; load-time validation rejects non-finite
// control points so evaluation never produces NaN.
type RPCPoint struct {
	X, Y float32
	Type CurveType
}

// RPC maps the current value of Variable through Points to a delta applied
// to Parameter. Deltas from multiple RPCs targeting the same parameter on
// the same instance accumulate (add).
type RPC struct {
	Variable  VariableIndex
	Parameter RPCParameter
	DSPParam  DSPIndex // only meaningful when Parameter >= RPCParameterCount
	Points    []RPCPoint
}

// EventType tags the Event payload union (§4.4, §9 re-architecture note:
// represented as a common header plus a payload per variant rather than an
// inline C-style union).
type EventType uint8

const (
	EventStop EventType = iota
	EventPlayWave
	EventSetPitch
	EventSetVolume
	EventMarker
	EventStopRepeating
	EventPlayWaveRepeating
	EventSetPitchRepeating
	EventSetVolumeRepeating
	EventMarkerRepeating
)

func (t EventType) Repeating() bool {
	return t >= EventStopRepeating
}

// Base returns the non-repeating EventType for a (possibly repeating) one,
// so dispatch can switch on a single canonical value.
func (t EventType) Base() EventType {
	if t.Repeating() {
		return t - EventStopRepeating
	}
	return t
}

// WaveTrack is one candidate track of a (possibly complex) PlayWave event.
type WaveTrack struct {
	WaveBank   WaveBankIndex
	Wave       WaveIndex
	Weight     uint16 // relative selection weight within the track list
	PitchVar   [2]int16
	VolumeVar  [2]int8
	FilterVar  [2]int8
}

// EquationFlags selects how a SetPitch/SetVolume equation combines with the
// current value: one of {Add, Multiply, Replace} crossed with
// {Linear, Log, RandomInRange}.
type EquationFlags uint8

const (
	EquationAdd EquationFlags = iota
	EquationMultiply
	EquationReplace
)

const (
	EquationLinear EquationFlags = iota << 2
	EquationLog
	EquationRandomInRange
)

// RampSpec describes a (initial, initialSlope, slopeDelta, duration) ramp.
// At run time only Initial is applied, as an immediate jump when the event
// fires; InitialSlope, SlopeDelta and DurationMS are loaded but not
// evaluated, and no clamp is applied to the result.
type RampSpec struct {
	Initial      float32
	InitialSlope float32
	SlopeDelta   float32
	DurationMS   uint16
}

// EquationSpec describes a one-shot equation application.
type EquationSpec struct {
	Flags EquationFlags
	V1    float32
	V2    float32
}

// Event is a timed action within a Clip. Timestamp/RandomOffset/LoopCount/
// Frequency are the common header from spec.md §3; the Payload fields below
// are the tagged-union variants, of which only the ones matching Type are
// populated.
type Event struct {
	Type         EventType
	TimestampMS  uint16
	RandomOffset uint16
	LoopCount    uint8
	Frequency    uint16 // probability weight for repeating variants

	// PlayWave payload (simple: exactly one Track).
	Tracks []WaveTrack

	// SetPitch / SetVolume payload: exactly one of Ramp/Equation is used,
	// selected by UseRamp.
	Ramp      *RampSpec
	Equation  *EquationSpec
	UseRamp   bool

	// Marker payload.
	MarkerID uint32
}

// Clip is an ordered list of timed Events over a single playback timeline.
type Clip struct {
	VolumeEncoded uint8
	Filter        uint8
	QFactor       uint8
	FrequencyHz   uint32
	RPCCodes      []RPCIndex
	Events        []Event
}

// SoundFlags is a bitset of Sound-level behavior flags (e.g. "has RPCs",
// "complex"); only the bits the runtime consults are named here.
type SoundFlags uint16

// Sound is a program of one or more Clips targeting a Category with static
// volume/pitch/priority.
type Sound struct {
	Flags         SoundFlags
	Category      CategoryIndex
	VolumeEncoded uint8
	PitchCents    int16
	Priority      uint8
	Clips         []Clip
	RPCCodes      []RPCIndex
	DSPCodes      []DSPIndex
}

// SelectionPolicy is the VariationTable selection policy.
type SelectionPolicy uint8

const (
	SelectOrdered SelectionPolicy = iota
	SelectRandomNoImmediateRepeat
	SelectRandom
	SelectShuffle
	SelectInteractive
)

// Variation is one alternative in a VariationTable.
type Variation struct {
	// Exactly one of Sound/Wave is meaningful, selected by this entry's
	// IsWave flag (kept as a sum type per spec.md §9 rather than an
	// inline union).
	Sound    SoundIndex
	IsWave   bool
	WaveBank WaveBankIndex
	Wave     WaveIndex

	MinWeight float32
	MaxWeight float32
}

// VariationTable selects one alternative per play according to Policy.
type VariationTable struct {
	Policy   SelectionPolicy
	Variable VariableIndex // only meaningful for SelectInteractive
	Entries  []Variation
}

// CueData is the immutable, bank-owned definition a runtime Cue plays.
// Definition is a sum type: exactly one of SoundRef/VariationRef is valid,
// selected by IsVariation.
type CueData struct {
	Name         string
	IsVariation  bool
	SoundRef     SoundIndex
	VariationRef VariationTableIndex
}

// SoundBank owns the arrays of CueData, Sound, VariationTable and the name
// lookup tables materialized from one loaded byte stream.
type SoundBank struct {
	Name            string
	Cues            []CueData
	Sounds          []Sound
	VariationTables []VariationTable
	cueNames        map[string]int
}

// LookupCueByName returns the index of the named cue, or NotFound.
func (b *SoundBank) LookupCueByName(name string) (int, error) {
	if b.cueNames == nil {
		b.cueNames = make(map[string]int, len(b.Cues))
		for i, c := range b.Cues {
			b.cueNames[c.Name] = i
		}
	}
	idx, ok := b.cueNames[name]
	if !ok {
		return 0, ErrNotFound("cue %q not found in bank %q", name, b.Name)
	}
	return idx, nil
}

// Engine owns the process-wide schema: categories, variables and RPCs. It
// holds no loaded banks and no runtime Cue/Wave state (see cue, wave).
type Engine struct {
	Categories []Category
	Variables  []Variable
	RPCs       []RPC
	varNames   map[string]int
}

// LookupVariableByName returns the handle of the named variable, or
// NotFound.
func (e *Engine) LookupVariableByName(name string) (VariableIndex, error) {
	if e.varNames == nil {
		e.varNames = make(map[string]int, len(e.Variables))
		for i, v := range e.Variables {
			e.varNames[v.Name] = i
		}
	}
	idx, ok := e.varNames[name]
	if !ok {
		return 0, ErrNotFound("variable %q not found", name)
	}
	return VariableIndex(idx), nil
}

// GetCategoryChain returns the ordered sequence of category indices from
// leaf (index itself) to root, following Parent links.
func (e *Engine) GetCategoryChain(index CategoryIndex) ([]CategoryIndex, error) {
	if int(index) < 0 || int(index) >= len(e.Categories) {
		return nil, ErrInvalidArgument("category index %d out of range", index)
	}
	chain := make([]CategoryIndex, 0, 4)
	seen := make(map[CategoryIndex]bool, 4)
	cur := index
	for {
		if seen[cur] {
			return nil, ErrInvalidBank("category %d: cycle in parent chain", index)
		}
		seen[cur] = true
		chain = append(chain, cur)
		next := e.Categories[cur].Parent
		if next == NoIndex {
			return chain, nil
		}
		cur = next
	}
}
