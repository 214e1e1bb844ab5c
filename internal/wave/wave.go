// Package wave defines the pull-based decoder contract a wave bank must
// satisfy to be mixed by package mixer, plus a small in-memory decoder used
// by tests and by tools that synthesize rather than load audio.
package wave

import (
	"io"

	"github.com/soundrt/engine/internal/schema"
)

// Decoder is a seekable source of interleaved float32 samples at a fixed
// channel count and sample rate. The mixer seeks to and reads single frames
// for every output sample of an active voice; a Decoder that has reached its end returns io.EOF once
// its buffer is exhausted, matching io.Reader semantics.
type Decoder interface {
	Read(buf []float32) (n int, err error)
	Seek(frame int64) error
	Tell() int64
	Length() int64 // total frames, or -1 if unknown/streaming
	Channels() int
	SampleRate() int
}

// Bank resolves a (WaveBank, Wave) reference pair from a loaded sound bank
// into a fresh Decoder instance. Implementations typically keep the
// underlying file or in-memory blob open and hand out independent Decoders
// so the same wave can be played by multiple simultaneous voices.
type Bank interface {
	NewDecoder(wave schema.WaveIndex) (Decoder, error)
	Name() string
}

// MemoryBank is an in-memory Bank backed by pre-decoded float32 sample
// buffers, used by tests and by offline tools that synthesize tones rather
// than load .wav data from disk.
type MemoryBank struct {
	name    string
	entries []memoryEntry
}

type memoryEntry struct {
	samples    []float32
	channels   int
	sampleRate int
}

// NewMemoryBank creates an empty bank; use AddWave to populate it.
func NewMemoryBank(name string) *MemoryBank {
	return &MemoryBank{name: name}
}

// AddWave appends one wave's samples (interleaved if channels > 1) and
// returns its schema.WaveIndex within this bank.
func (b *MemoryBank) AddWave(samples []float32, channels, sampleRate int) schema.WaveIndex {
	b.entries = append(b.entries, memoryEntry{samples: samples, channels: channels, sampleRate: sampleRate})
	return schema.WaveIndex(len(b.entries) - 1)
}

func (b *MemoryBank) Name() string { return b.name }

func (b *MemoryBank) NewDecoder(wave schema.WaveIndex) (Decoder, error) {
	if int(wave) < 0 || int(wave) >= len(b.entries) {
		return nil, schema.ErrNotFound("wave index %d not in bank %q", wave, b.name)
	}
	e := b.entries[wave]
	return &memoryDecoder{entry: e}, nil
}

// memoryDecoder walks a MemoryBank entry's sample slice.
type memoryDecoder struct {
	entry memoryEntry
	frame int64
}

func (d *memoryDecoder) frames() int64 {
	if d.entry.channels == 0 {
		return 0
	}
	return int64(len(d.entry.samples)) / int64(d.entry.channels)
}

func (d *memoryDecoder) Read(buf []float32) (int, error) {
	ch := d.entry.channels
	total := d.frames()
	if d.frame >= total {
		return 0, io.EOF
	}
	framesWanted := int64(len(buf)) / int64(ch)
	remaining := total - d.frame
	if framesWanted > remaining {
		framesWanted = remaining
	}
	start := d.frame * int64(ch)
	n := int(framesWanted) * ch
	copy(buf[:n], d.entry.samples[start:start+int64(n)])
	d.frame += framesWanted
	if d.frame >= total {
		return n, io.EOF
	}
	return n, nil
}

func (d *memoryDecoder) Seek(frame int64) error {
	if frame < 0 || frame > d.frames() {
		return schema.ErrInvalidArgument("seek frame %d out of range", frame)
	}
	d.frame = frame
	return nil
}

func (d *memoryDecoder) Tell() int64        { return d.frame }
func (d *memoryDecoder) Length() int64      { return d.frames() }
func (d *memoryDecoder) Channels() int      { return d.entry.channels }
func (d *memoryDecoder) SampleRate() int    { return d.entry.sampleRate }
