package cue

import (
	"sync"

	"github.com/soundrt/engine/internal/detrand"
	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/rpc"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/variable"
)

// State is a Cue's position in the Created -> Prepared -> Playing ->
// Stopping -> Stopped lifecycle. Paused is tracked separately since it is
// orthogonal to State (spec.md §4.4).
type State int

const (
	StateCreated State = iota
	StatePrepared
	StatePlaying
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StatePrepared:
		return "Prepared"
	case StatePlaying:
		return "Playing"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Cue is one playing (or just-stopped) instance of a bank's CueData. It
// owns a ClipInstance per Clip of its resolved Sound, the cue's private
// variable snapshot, and its own deterministic RNG sub-stream.
type Cue struct {
	ID   uint64
	Name string

	mu       sync.Mutex
	State    State
	Paused   bool

	bank     *schema.SoundBank
	sound    *schema.Sound
	category schema.CategoryIndex

	// categoryVolumeDB is the summed dB offset of the category and its
	// ancestor chain at Play time. Categories don't change parent/volume
	// mid-cue, so this is captured once rather than recomputed every tick.
	categoryVolumeDB float32

	Vars *variable.CueStore
	rng  *detrand.Source

	clips []*ClipInstance

	elapsedMS int64

	fadeTotalMS       int64
	fadeElapsedMS     int64
	fadingIn          bool
	categoryFadeOutMS uint16

	soundDeltas  *rpc.Deltas
	activeVoices int

	notifyQueue *notify.Queue
}

// VoiceFinished records that one of this cue's wave voices reached the end
// of its decoder; the mixer calls this once per voice as it drains. A cue
// whose event timeline is exhausted only transitions to Stopped once
// activeVoices again reaches zero, per spec.md's "all waves started by
// this cue have stopped" condition.
func (c *Cue) VoiceFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeVoices > 0 {
		c.activeVoices--
	}
}

// Priority returns the Sound's static priority, used by
// replace-lowest-priority admission.
func (c *Cue) Priority() uint8 {
	return c.sound.Priority
}

// Sound returns the resolved Sound definition this cue is playing.
func (c *Cue) Sound() *schema.Sound {
	return c.sound
}

// Clips returns the per-Clip runtime state the mixer reads to apply
// parameters and drain pending wave requests.
func (c *Cue) Clips() []*ClipInstance {
	return c.clips
}

// SoundDeltas returns the Sound-scoped RPC accumulator (spec.md §4.3:
// RPCs at Sound scope vs. Clip scope accumulate into separate
// InstanceRPCData).
func (c *Cue) SoundDeltas() *rpc.Deltas {
	return c.soundDeltas
}

// RefreshRPCs re-evaluates every RPC targeting this cue's Sound and each
// of its Clips against the cue's current variable snapshot, called once
// per mix quantum before parameters are read for sample accumulation.
func (c *Cue) RefreshRPCs(allRPCs []schema.RPC) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.soundDeltas.Reset()
	rpc.EvaluateAll(c.soundDeltas, resolveRPCs(allRPCs, c.sound.RPCCodes), c.Vars)

	for _, ci := range c.clips {
		ci.Deltas.Reset()
		rpc.EvaluateAll(ci.Deltas, resolveRPCs(allRPCs, ci.clip.RPCCodes), c.Vars)
	}
}

func resolveRPCs(all []schema.RPC, codes []schema.RPCIndex) []schema.RPC {
	out := make([]schema.RPC, 0, len(codes))
	for _, idx := range codes {
		if int(idx) >= 0 && int(idx) < len(all) {
			out = append(out, all[idx])
		}
	}
	return out
}

// Category returns the category this cue is counted against.
func (c *Cue) Category() schema.CategoryIndex {
	return c.category
}

// CategoryVolumeDB returns the summed dB offset of this cue's category and
// its ancestor chain, captured once at Play time.
func (c *Cue) CategoryVolumeDB() float32 {
	return c.categoryVolumeDB
}

// SoundVolumeDB returns the resolved Sound's static encoded volume as a dB
// offset, the sound-level term of the voice's overall volume chain.
func (c *Cue) SoundVolumeDB() float32 {
	return EncodedVolumeToDB(c.sound.VolumeEncoded)
}

// SoundPitchCents returns the resolved Sound's static pitch offset, the
// sound-level term of the voice's overall pitch chain.
func (c *Cue) SoundPitchCents() float32 {
	return float32(c.sound.PitchCents)
}

// CurrentVolumeDB returns the cue's current effective volume in dB,
// combining the category chain and Sound's static volume with any live
// SetVolume override and accumulated RPC delta. Used by replace-quietest
// admission, generalized from the teacher's stealVoice() quietest-envelope
// comparison.
func (c *Cue) CurrentVolumeDB() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.categoryVolumeDB + EncodedVolumeToDB(c.sound.VolumeEncoded)
	if c.soundDeltas != nil {
		v += c.soundDeltas.VolumeDB
	}
	for _, ci := range c.clips {
		v += ci.VolumeOverrideDB + ci.StaticVolumeDB()
	}
	return v
}

// IsLive reports whether the cue is still occupying a category slot
// (Playing or Stopping, i.e. not yet finalized to Stopped).
func (c *Cue) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.State == StatePlaying || c.State == StateStopping
}

// RequestStop begins the Playing -> Stopping -> Stopped transition.
// immediate bypasses any fade and every ClipInstance's waves stop
// synchronously; otherwise the caller (Manager.Tick) drives the fade-out
// over the owning Category's FadeOutMS.
func (c *Cue) RequestStop(immediate bool, fadeOutMS uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State == StateStopped {
		return
	}
	if immediate || fadeOutMS == 0 {
		c.State = StateStopped
		return
	}
	c.State = StateStopping
	c.fadeTotalMS = int64(fadeOutMS)
	c.fadeElapsedMS = 0
	c.fadingIn = false
}

// beginFadeIn installs a Created/Prepared -> Playing fade-in ramp, per
// spec.md §4.4 step 4.
func (c *Cue) beginFadeIn(fadeInMS uint16) {
	c.State = StatePlaying
	if fadeInMS > 0 {
		c.fadeTotalMS = int64(fadeInMS)
		c.fadeElapsedMS = 0
		c.fadingIn = true
	}
}

// FadeGainDB returns the additional attenuation the mix driver should
// apply this tick on top of CurrentVolumeDB, modeling the linear fade-in
// or fade-out ramp currently in progress (0 dB if neither is active).
func (c *Cue) FadeGainDB() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fadeTotalMS <= 0 {
		return 0
	}
	t := float32(c.fadeElapsedMS) / float32(c.fadeTotalMS)
	if t > 1 {
		t = 1
	}
	const silenceFloorDB = -96
	if c.fadingIn {
		return silenceFloorDB * (1 - t)
	}
	return silenceFloorDB * t
}

// Tick advances the cue by deltaMS (one mix-driver quantum). It returns the
// markers reached and waves requested across every ClipInstance this tick,
// and reports whether the cue has transitioned to Stopped (in which case
// the Manager removes it from category bookkeeping and publishes
// CueStop).
func (c *Cue) Tick(deltaMS int64) (markers []uint32, plays []WaveRequest, justStopped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State == StateStopped || c.Paused {
		return nil, nil, false
	}

	c.elapsedMS += deltaMS
	if c.fadeTotalMS > 0 {
		c.fadeElapsedMS += deltaMS
	}

	allEventsDone := true
	anyStopRequested := false
	for idx, ci := range c.clips {
		m, p, stopReq := ci.Tick(c.elapsedMS)
		markers = append(markers, m...)
		for i := range p {
			p[i].ClipIndex = idx
		}
		plays = append(plays, p...)
		if stopReq {
			anyStopRequested = true
		}
		if !ci.Done() {
			allEventsDone = false
		}
	}
	c.activeVoices += len(plays)
	allDone := allEventsDone && c.activeVoices == 0

	switch c.State {
	case StatePlaying:
		if c.fadeTotalMS > 0 && c.fadingIn && c.fadeElapsedMS >= c.fadeTotalMS {
			c.fadeTotalMS = 0
		}
		if anyStopRequested {
			c.State = StateStopping
			if c.fadeTotalMS <= 0 {
				c.fadeTotalMS = int64(c.categoryFadeOutMS)
				c.fadeElapsedMS = 0
				c.fadingIn = false
			}
		} else if allDone {
			// Natural end of a non-looping sound: no fade-out, per
			// scenario 1 (single-shot) expecting an immediate CueStop.
			c.State = StateStopped
			return markers, plays, true
		}
	case StateStopping:
		if c.fadeTotalMS <= 0 || c.fadeElapsedMS >= c.fadeTotalMS {
			c.State = StateStopped
			return markers, plays, true
		}
	}

	return markers, plays, false
}
