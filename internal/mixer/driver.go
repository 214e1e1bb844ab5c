// Package mixer implements the per-period mix driver of spec.md §4.5: a
// single audio callback that, for each buffer period, advances all active
// cues, resolves their current parameters, accumulates samples from their
// waves, and writes one interleaved float32 buffer. It implements
// platform.SampleSource so the platform package can drive it from the real
// audio device, and it owns the global effects.Chain (reverb bus) RPCs
// feed into via reverb_send.
package mixer

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/soundrt/engine/internal/cue"
	"github.com/soundrt/engine/internal/effects"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/wave"
)

// clipParams is the resolved, already-accumulated set of RPC deltas plus
// static overrides applied to one voice for the current quantum.
type clipParams struct {
	volumeDB     float32
	pitchCents   float32
	filterFreqHz float32
	filterQ      float32
	reverbSend   float32
}

// WaveBanks resolves a schema.WaveBankIndex (as referenced by a bank's
// WaveTrack entries) to the loaded wave.Bank that owns it. The root engine
// populates this as wave banks are loaded.
type WaveBanks struct {
	mu    sync.RWMutex
	banks map[schema.WaveBankIndex]wave.Bank
}

// NewWaveBanks creates an empty registry.
func NewWaveBanks() *WaveBanks {
	return &WaveBanks{banks: make(map[schema.WaveBankIndex]wave.Bank)}
}

// Set installs bank at idx, replacing any previous bank at that index.
func (w *WaveBanks) Set(idx schema.WaveBankIndex, bank wave.Bank) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.banks[idx] = bank
}

func (w *WaveBanks) resolve(idx schema.WaveBankIndex) (wave.Bank, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.banks[idx]
	if !ok {
		return nil, schema.ErrNotFound("wave bank index %d not loaded", idx)
	}
	return b, nil
}

// Driver is the mix driver: a platform.SampleSource that ticks the cue
// Manager once per quantum and accumulates every active voice's samples
// into the callback's output buffer.
type Driver struct {
	sampleRate    int
	quantumFrames int
	frameAcc      int

	engine    *schema.Engine
	cues      *cue.Manager
	waveBanks *WaveBanks

	reverbBus *effects.Chain
	reverb    *effects.Reverb
	masterEQ  *effects.EQ5Band

	voices map[*cue.Cue][]*voice

	masterGain uint64 // atomic float64 bits, 1.0 == 0 dB
}

// NewDriver creates a Driver. quantumMS is how often (in milliseconds)
// cues are ticked and RPCs re-evaluated; spec.md leaves the exact period
// to the implementation, so a typical audio-callback-aligned value (e.g.
// 10ms) is used by the root engine.
func NewDriver(sampleRate int, quantumMS int, engine *schema.Engine, cues *cue.Manager, waveBanks *WaveBanks) *Driver {
	reverb := effects.NewReverb(sampleRate, 0.5, 0.6, 0)
	d := &Driver{
		sampleRate:    sampleRate,
		quantumFrames: sampleRate * quantumMS / 1000,
		engine:        engine,
		cues:          cues,
		waveBanks:     waveBanks,
		reverb:        reverb,
		reverbBus:     effects.NewChain(reverb),
		masterEQ:      effects.NewEQ5Band(sampleRate),
		voices:        make(map[*cue.Cue][]*voice),
	}
	d.SetMasterVolume(1.0)
	if d.quantumFrames < 1 {
		d.quantumFrames = 1
	}
	return d
}

// SetMasterVolume sets the linear master gain (1.0 is unity).
func (d *Driver) SetMasterVolume(gain float64) {
	atomic.StoreUint64(&d.masterGain, math.Float64bits(gain))
}

func (d *Driver) masterVolume() float64 {
	return math.Float64frombits(atomic.LoadUint64(&d.masterGain))
}

// AddBusEffect appends an additional Effector to the shared reverb/master
// bus, run after the reverb return and before the master EQ. This is the
// seam a caller uses to layer in the teacher's other effect types (delay,
// chorus, distortion) without the mixer hard-coding which ones apply.
func (d *Driver) AddBusEffect(e effects.Effector) {
	d.reverbBus.Add(e)
}

// SetEQBand sets the master EQ5Band gain for band (0-4), 1.0 == unity,
// mirroring the teacher's Player.SetEQBand passthrough.
func (d *Driver) SetEQBand(band int, gain float32) {
	d.masterEQ.SetGain(band, gain)
}

// EQBand returns the current master EQ5Band gain for band (0-4).
func (d *Driver) EQBand(band int) float32 {
	return d.masterEQ.Gain(band)
}

// Process implements platform.SampleSource: it fills dst (interleaved
// stereo float32) by ticking the cue manager every quantumFrames frames
// and rendering one frame at a time in between ticks, mirroring the
// teacher sequencer's tickFrac/dispatchTick split inside Process.
func (d *Driver) Process(dst []float32) {
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		d.frameAcc++
		if d.frameAcc >= d.quantumFrames {
			d.frameAcc = 0
			d.tick()
		}
		l, r := d.renderFrame()
		dst[f*2] = l
		dst[f*2+1] = r
	}
}

func (d *Driver) tick() {
	quantumMS := int64(d.quantumFrames) * 1000 / int64(d.sampleRate)
	if quantumMS < 1 {
		quantumMS = 1
	}
	plays := d.cues.Tick(quantumMS)

	for c, reqs := range plays {
		for _, req := range reqs {
			bank, err := d.waveBanks.resolve(req.WaveBank)
			if err != nil {
				slog.Warn("mixer: wave bank not loaded, treating wave as ended", "waveBank", int(req.WaveBank), "error", err)
				c.VoiceFinished() // missing wave: log-and-treat-as-ended, per spec.md §4.4
				continue
			}
			dec, err := bank.NewDecoder(req.Wave)
			if err != nil {
				slog.Warn("mixer: wave not found, treating wave as ended", "wave", int(req.Wave), "error", err)
				c.VoiceFinished()
				continue
			}
			d.voices[c] = append(d.voices[c], newVoice(c, req.ClipIndex, dec, req))
		}
	}

	for c := range d.voices {
		c.RefreshRPCs(d.engine.RPCs)
	}

	var reverbSend float32
	for c, vs := range d.voices {
		live := vs[:0]
		for _, v := range vs {
			if v.done {
				continue
			}
			live = append(live, v)
		}
		d.voices[c] = live
		if len(live) == 0 {
			delete(d.voices, c)
		}
		if sd := c.SoundDeltas(); sd != nil && sd.ReverbSend > reverbSend {
			reverbSend = sd.ReverbSend
		}
	}
	d.reverb.SetWet(clamp01(reverbSend))
}

func (d *Driver) renderFrame() (float32, float32) {
	var accL, accR float32
	for c, vs := range d.voices {
		sd := c.SoundDeltas()
		// Volume accumulates as a chain: category, sound, clip, RPC delta
		// and the fade envelope; pitch sums only the sound, clip and RPC
		// terms (no category or fade term). dB terms
		// sum because dB addition is linear-gain multiplication, so the
		// category/sound/fade terms are folded in once per cue here; the
		// per-clip and per-voice terms are added below.
		cueVolumeDB := c.CategoryVolumeDB() + c.SoundVolumeDB() + sd.VolumeDB + c.FadeGainDB()
		cuePitchCents := c.SoundPitchCents() + sd.PitchCents
		for _, v := range vs {
			p := clipParams{volumeDB: cueVolumeDB, pitchCents: cuePitchCents, filterFreqHz: sd.FilterFreqHz, filterQ: sd.FilterQ}
			if v.clipIdx < len(c.Clips()) {
				ci := c.Clips()[v.clipIdx]
				p.volumeDB += ci.StaticVolumeDB() + ci.VolumeOverrideDB + ci.Deltas.VolumeDB
				p.pitchCents += ci.PitchOverrideCents + ci.Deltas.PitchCents
				p.filterFreqHz += ci.StaticFilterFreqHz() + ci.Deltas.FilterFreqHz
				p.filterQ += ci.StaticFilterQ() + ci.Deltas.FilterQ
			}
			v.Process(p, float64(d.sampleRate), &accL, &accR)
		}
	}

	accL, accR = d.reverbBus.Process(accL, accR)
	accL, accR = d.masterEQ.Process(accL, accR)

	gain := float32(d.masterVolume())
	return accL * gain, accR * gain
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
