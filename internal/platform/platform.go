// Package platform is the capability object SPEC_FULL.md §9 calls for:
// "a capability object passed into the engine at construction; the core
// contains no direct platform calls." It wraps the actual audio device
// callback delivery (via ebitengine/oto) behind the SampleSource contract
// the mix driver implements, adapted from the teacher's internal/audio
// package.
package platform

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource produces interleaved float32 stereo frames on demand. The
// mix driver (package mixer) is the production implementation.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to io.Reader, the shape ebiten/oto's
// player wants, converting float32 samples to little-endian bytes.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

// NewStreamReader wraps source for delivery through an oto player.
func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8 // 2 channels * 4 bytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return need * 4, nil
}

func (r *StreamReader) Close() error { return nil }

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextErr  error
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("platform: audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Output drives a SampleSource through the platform's real audio device.
type Output struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

// NewOutput creates an Output at sampleRate driven by source; call Play to
// start it.
// Every Output in a process must agree on sampleRate (ebiten/oto shares
// one device context).
func NewOutput(sampleRate int, source SampleSource) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()            { o.player.Play() }
func (o *Output) Pause()           { o.player.Pause() }
func (o *Output) IsPlaying() bool  { return o.player.IsPlaying() }
func (o *Output) Position() time.Duration {
	return o.player.Position()
}

func (o *Output) Stop() error {
	o.player.Pause()
	o.player.Close()
	return o.reader.Close()
}
