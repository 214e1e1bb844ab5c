package mixer

import (
	"io"
	"math"

	"github.com/soundrt/engine/internal/cue"
	"github.com/soundrt/engine/internal/wave"
)

// voice is one currently-playing wave decoder, pulled once per callback
// sample. Pitch is realized as a playback-rate change through linear
// interpolation rather than true resampling, which keeps per-sample cost
// to a handful of float ops, matching the cost profile of the teacher's
// per-operator phase accumulation.
type voice struct {
	owner   *cue.Cue
	clipIdx int
	decoder wave.Decoder

	baseVolumeDB float32
	basePitch    float32 // cents

	readPos float64 // fractional frame index into the decoder's stream

	filter onePole
	done   bool
}

func newVoice(owner *cue.Cue, clipIdx int, dec wave.Decoder, req cue.WaveRequest) *voice {
	return &voice{
		owner:        owner,
		clipIdx:      clipIdx,
		decoder:      dec,
		baseVolumeDB: req.VolumeDB,
		basePitch:    req.PitchCents,
	}
}

func centsToRatio(cents float32) float64 {
	return math.Pow(2, float64(cents)/1200)
}

func dbToLinear(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// readFrame pulls one decoded frame at integer position pos into dst,
// downmixing to mono if the source is mono and doubling across both
// output channels (stereo sources pass through unchanged).
func (v *voice) readFrame(pos int64, dst *[2]float32) bool {
	ch := v.decoder.Channels()
	buf := make([]float32, ch)
	if err := v.decoder.Seek(pos); err != nil {
		return false
	}
	n, err := v.decoder.Read(buf)
	if n < ch {
		if err == io.EOF || n == 0 {
			return false
		}
	}
	if ch == 1 {
		dst[0], dst[1] = buf[0], buf[0]
	} else {
		dst[0], dst[1] = buf[0], buf[1]
	}
	return true
}

// Process advances the voice by one output sample, applying pitch, volume
// (static + RPC delta), and the per-voice one-pole filter, then mixes into
// accL/accR.
func (v *voice) Process(deltas clipParams, sampleRate float64, accL, accR *float32) {
	if v.done {
		return
	}

	pos := int64(v.readPos)
	var cur [2]float32
	if !v.readFrame(pos, &cur) {
		v.done = true
		v.owner.VoiceFinished()
		return
	}
	if frac := float32(v.readPos - float64(pos)); frac > 0 {
		var next [2]float32
		if v.readFrame(pos+1, &next) {
			cur[0] += (next[0] - cur[0]) * frac
			cur[1] += (next[1] - cur[1]) * frac
		}
	}

	gainDB := v.baseVolumeDB + deltas.volumeDB
	gain := dbToLinear(gainDB)
	l, r := cur[0]*gain, cur[1]*gain

	if deltas.filterFreqHz > 0 {
		l, r = v.filter.Process(l, r, float64(deltas.filterFreqHz), float64(deltas.filterQ), sampleRate)
	}

	*accL += l
	*accR += r

	ratio := centsToRatio(v.basePitch + deltas.pitchCents)
	v.readPos += ratio
}
