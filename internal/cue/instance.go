package cue

import (
	"math"

	"github.com/soundrt/engine/internal/detrand"
	"github.com/soundrt/engine/internal/rpc"
	"github.com/soundrt/engine/internal/schema"
)

// WaveRequest is a PlayWave event's resolved outcome: the mixer acquires a
// wave.Decoder for (WaveBank, Wave) and starts it with these per-instance
// parameter offsets layered on top of the Sound/Clip's static volume/pitch.
type WaveRequest struct {
	WaveBank   schema.WaveBankIndex
	Wave       schema.WaveIndex
	PitchCents float32
	VolumeDB   float32
	ClipIndex  int
}

// ClipInstance is the per-event bookkeeping for one playing Clip:
// eventLoopsLeft/eventFinished/eventTimestamp from spec.md §3, generalized
// to the Event tagged union. One ClipInstance exists per Clip of the Cue's
// active Sound for the lifetime of a single Play.
type ClipInstance struct {
	clip *schema.Clip
	rng  *detrand.Source

	elapsedMS       int64
	loopsLeft       []int
	finished        []bool
	nextFireMS      []int64

	// Per-instance parameter offsets accumulated by SetPitch/SetVolume
	// events, on top of the Sound's static volume/pitch and any RPC delta.
	VolumeOverrideDB   float32
	PitchOverrideCents float32

	// Deltas accumulates Clip-scoped RPCs (spec.md §4.3), refreshed once
	// per quantum by Cue.RefreshRPCs.
	Deltas *rpc.Deltas

	stopRequested bool

	markers      []uint32
	pendingPlays []WaveRequest
}

// Clip returns the schema definition this instance is ticking.
func (ci *ClipInstance) Clip() *schema.Clip {
	return ci.clip
}

// StaticVolumeDB returns the Clip's static encoded volume as a dB offset,
// the clip-level term of the voice's overall volume chain.
func (ci *ClipInstance) StaticVolumeDB() float32 {
	return EncodedVolumeToDB(ci.clip.VolumeEncoded)
}

// StaticFilterFreqHz returns the Clip's static filter cutoff when the clip
// carries a filter (Filter != 0 selects the one-pole lowpass the mixer
// implements; 0 means the clip has no static filter), 0 otherwise.
func (ci *ClipInstance) StaticFilterFreqHz() float32 {
	if ci.clip.Filter == 0 {
		return 0
	}
	return float32(ci.clip.FrequencyHz)
}

// StaticFilterQ converts the Clip's encoded Q factor (0-255) to the linear
// resonance multiplier onePole.Process expects, the same 0-255 integer
// encoding EncodedVolumeToDB uses for volume.
func (ci *ClipInstance) StaticFilterQ() float32 {
	return float32(ci.clip.QFactor) / 25.5
}

// NewClipInstance initializes per-event state at Play time, per spec.md
// §4.4 step 3 (eventLoopsLeft[i] = event.loopCount, eventFinished[i] =
// false, eventTimestamp = 0).
func NewClipInstance(clip *schema.Clip, rng *detrand.Source) *ClipInstance {
	n := len(clip.Events)
	ci := &ClipInstance{
		clip:       clip,
		rng:        rng,
		loopsLeft:  make([]int, n),
		finished:   make([]bool, n),
		nextFireMS: make([]int64, n),
		Deltas:     rpc.NewDeltas(),
	}
	for i, ev := range clip.Events {
		ci.loopsLeft[i] = int(ev.LoopCount)
		ci.nextFireMS[i] = int64(ev.TimestampMS)
	}
	return ci
}

// Done reports whether every event in the clip has finished firing.
func (ci *ClipInstance) Done() bool {
	for _, f := range ci.finished {
		if !f {
			return false
		}
	}
	return true
}

// Tick advances the clip instance to nowMS (elapsed since the Cue started
// playing) and fires every event whose scheduled time has passed. It
// returns the markers reached and waves requested this tick; StopRequested
// reports whether a Stop event fired.
func (ci *ClipInstance) Tick(nowMS int64) (markers []uint32, plays []WaveRequest, stopRequested bool) {
	ci.elapsedMS = nowMS
	ci.markers = ci.markers[:0]
	ci.pendingPlays = ci.pendingPlays[:0]

	for i := range ci.clip.Events {
		if ci.finished[i] {
			continue
		}
		ev := &ci.clip.Events[i]

		jitter := int64(0)
		if ev.RandomOffset > 0 {
			jitter = int64(ci.rng.Intn(int(ev.RandomOffset) + 1))
		}
		if nowMS+jitter < ci.nextFireMS[i] {
			continue
		}

		repeating := ev.Type.Repeating()
		fire := true
		if repeating && ev.Frequency < 0xFFFF {
			fire = ci.rng.Intn(0x10000) < int(ev.Frequency)
		}
		if fire {
			ci.applyEvent(ev)
		}

		if repeating {
			if ci.loopsLeft[i] > 0 {
				ci.loopsLeft[i]--
			}
			if ci.loopsLeft[i] <= 0 {
				ci.finished[i] = true
			} else {
				period := int64(ev.TimestampMS)
				if period < 1 {
					period = 1
				}
				ci.nextFireMS[i] += period
			}
		} else {
			ci.finished[i] = true
		}
	}

	return ci.markers, ci.pendingPlays, ci.stopRequested
}

func (ci *ClipInstance) applyEvent(ev *schema.Event) {
	switch ev.Type.Base() {
	case schema.EventPlayWave:
		ci.firePlayWave(ev)
	case schema.EventSetPitch:
		ci.PitchOverrideCents = ci.applyParamChange(ci.PitchOverrideCents, ev)
	case schema.EventSetVolume:
		ci.VolumeOverrideDB = ci.applyParamChange(ci.VolumeOverrideDB, ev)
	case schema.EventMarker:
		ci.markers = append(ci.markers, ev.MarkerID)
	case schema.EventStop:
		ci.stopRequested = true
	}
}

func (ci *ClipInstance) firePlayWave(ev *schema.Event) {
	if len(ev.Tracks) == 0 {
		return
	}
	track := ev.Tracks[0]
	if len(ev.Tracks) > 1 {
		weights := make([]float32, len(ev.Tracks))
		for i, tr := range ev.Tracks {
			weights[i] = float32(tr.Weight)
		}
		idx := ci.rng.WeightedIndex(weights)
		if idx < 0 {
			idx = 0
		}
		track = ev.Tracks[idx]
	}

	pitch := float32(0)
	if track.PitchVar[1] != track.PitchVar[0] {
		lo, hi := float32(track.PitchVar[0]), float32(track.PitchVar[1])
		pitch = lo + ci.rng.Float32()*(hi-lo)
	} else {
		pitch = float32(track.PitchVar[0])
	}

	vol := float32(0)
	if track.VolumeVar[1] != track.VolumeVar[0] {
		lo, hi := float32(track.VolumeVar[0]), float32(track.VolumeVar[1])
		vol = lo + ci.rng.Float32()*(hi-lo)
	} else {
		vol = float32(track.VolumeVar[0])
	}

	ci.pendingPlays = append(ci.pendingPlays, WaveRequest{
		WaveBank:   track.WaveBank,
		Wave:       track.Wave,
		PitchCents: pitch,
		VolumeDB:   vol,
	})
}

// applyParamChange resolves a SetPitch/SetVolume payload against current.
// Ramps are approximated by jumping to their Initial value immediately;
// the mixer is responsible for any finer-grained per-sample ramping it
// chooses to layer on top (not specified by spec.md beyond "a volume ramp"
// for Category fade-in/out, which package mixer implements directly).
func (ci *ClipInstance) applyParamChange(current float32, ev *schema.Event) float32 {
	if ev.UseRamp && ev.Ramp != nil {
		return ev.Ramp.Initial
	}
	eq := ev.Equation
	if eq == nil {
		return current
	}

	v := eq.V1
	switch eq.Flags & 0x0C {
	case schema.EquationRandomInRange:
		lo, hi := eq.V1, eq.V2
		v = lo + ci.rng.Float32()*(hi-lo)
	case schema.EquationLog:
		sign := float32(1)
		if v < 0 {
			sign = -1
		}
		v = sign * float32(math.Log2(1+math.Abs(float64(v))))
	}

	switch eq.Flags & 0x03 {
	case schema.EquationAdd:
		return current + v
	case schema.EquationMultiply:
		return current * v
	case schema.EquationReplace:
		return v
	default:
		return current
	}
}
