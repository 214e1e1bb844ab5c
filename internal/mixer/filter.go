package mixer

import "math"

const twoPi = 2 * math.Pi

// onePole is a one-pole RC lowpass, the same topology (and alpha formula)
// as the teacher's FM engine's LPFCutoff filter, generalized here to take
// a per-tick cutoff instead of a fixed one since filter_freq_hz is RPC-
// driven. Q above 1 scales alpha up (capped at 1), which raises the
// effective cutoff; Q at or below 1 leaves it unchanged. There is no
// resonant peak, and the per-voice cost stays one multiply-add per sample.
type onePole struct {
	stateL, stateR float64
}

func (f *onePole) alpha(cutoffHz, sampleRate float64) float64 {
	if cutoffHz <= 0 || cutoffHz >= sampleRate/2 {
		return 1 // pass-through
	}
	rc := 1.0 / (twoPi * cutoffHz)
	dt := 1.0 / sampleRate
	return dt / (rc + dt)
}

// Process applies the filter in place. When q > 1, alpha is multiplied by
// q and capped at 1 (pass-through), letting more high frequencies through.
func (f *onePole) Process(l, r float32, cutoffHz, q, sampleRate float64) (float32, float32) {
	a := f.alpha(cutoffHz, sampleRate)
	if q > 1 {
		a = math.Min(1, a*float64(q))
	}
	f.stateL += a * (float64(l) - f.stateL)
	f.stateR += a * (float64(r) - f.stateR)
	return float32(f.stateL), float32(f.stateR)
}

func (f *onePole) Reset() {
	f.stateL = 0
	f.stateR = 0
}
