package rpc

import "github.com/soundrt/engine/internal/schema"

// Deltas accumulates the additive contribution of every RPC affecting one
// voice for the current tick. Multiple RPCs targeting the same built-in
// parameter sum; DSP preset parameters are keyed by DSPIndex since a voice
// may carry more than one DSP preset.
type Deltas struct {
	VolumeDB      float32
	PitchCents    float32
	ReverbSend    float32
	FilterFreqHz  float32
	FilterQ       float32
	DSP           map[schema.DSPIndex]float32
}

// NewDeltas returns a zeroed accumulator ready for Accumulate calls.
func NewDeltas() *Deltas {
	return &Deltas{}
}

// Reset zeros every field in place, letting the mix driver reuse one Deltas
// per voice across ticks without allocating.
func (d *Deltas) Reset() {
	d.VolumeDB = 0
	d.PitchCents = 0
	d.ReverbSend = 0
	d.FilterFreqHz = 0
	d.FilterQ = 0
	for k := range d.DSP {
		delete(d.DSP, k)
	}
}

// Accumulate evaluates r at the given variable value and adds the result
// into the matching field of d.
func (d *Deltas) Accumulate(r schema.RPC, varValue float32) {
	delta := Evaluate(r, varValue)
	switch r.Parameter {
	case schema.ParamVolumeDB:
		d.VolumeDB += delta
	case schema.ParamPitchCents:
		d.PitchCents += delta
	case schema.ParamReverbSend:
		d.ReverbSend += delta
	case schema.ParamFilterFreqHz:
		d.FilterFreqHz += delta
	case schema.ParamFilterQ:
		d.FilterQ += delta
	default:
		if d.DSP == nil {
			d.DSP = make(map[schema.DSPIndex]float32)
		}
		d.DSP[r.DSPParam] += delta
	}
}

// VariableReader resolves a variable's current value; both the engine-
// global variable.Store and a per-cue variable.CueStore satisfy it.
type VariableReader interface {
	Get(idx schema.VariableIndex) (float32, error)
}

// EvaluateAll applies every RPC in rpcs to d, reading each RPC's driving
// variable from vars. RPCs referencing a variable that fails to resolve are
// skipped rather than aborting the whole evaluation, since a single bad
// reference should not silence every other curve on the voice.
func EvaluateAll(d *Deltas, rpcs []schema.RPC, vars VariableReader) {
	for _, r := range rpcs {
		v, err := vars.Get(r.Variable)
		if err != nil {
			continue
		}
		d.Accumulate(r, v)
	}
}
