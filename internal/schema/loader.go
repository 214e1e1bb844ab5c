package schema

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/sync/errgroup"
)

// Wire format: a small chunked little-endian container, in the spirit of
// the teacher's hand-rolled RIFF/WAVE writer (see the original offline.go
// WAV encoder this loader mirrors in reverse). Every section is read fully
// into memory and cross-validated before any schema object becomes
// reachable, so a truncated or inconsistent stream never leaves a
// partially constructed bank behind.
//
// Sound bank stream (LoadSoundBank):
//
//	magic      [4]byte  "SBNK"
//	version    uint16
//	name       uint16 length + bytes
//	numSounds  uint16
//	numTables  uint16
//	numCues    uint16
//	... sounds, variation tables, then cues ...
//
// Engine schema stream (LoadEngineSchema), with no magic or version:
//
//	numCats    uint16
//	numVars    uint16
//	numRPCs    uint16
//	... categories, variables, then RPCs ...
const (
	magicSoundBank = "SBNK"
	wireVersion    = 1
)

type reader struct {
	r   io.Reader
	err error
}

func (rd *reader) u8() uint8 {
	var b [1]byte
	rd.read(b[:])
	return b[0]
}

func (rd *reader) u16() uint16 {
	var b [2]byte
	rd.read(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (rd *reader) u32() uint32 {
	var b [4]byte
	rd.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (rd *reader) i16() int16 { return int16(rd.u16()) }
func (rd *reader) i32() int32 { return int32(rd.u32()) }

func (rd *reader) f32() float32 {
	return math.Float32frombits(rd.u32())
}

func (rd *reader) str() string {
	n := rd.u16()
	buf := make([]byte, n)
	rd.read(buf)
	return string(buf)
}

func (rd *reader) read(buf []byte) {
	if rd.err != nil {
		return
	}
	_, rd.err = io.ReadFull(rd.r, buf)
}

// LoadSoundBank materializes a SoundBank from src. On any error the
// returned bank is nil and no partially constructed schema object is
// reachable.
func LoadSoundBank(src io.Reader) (*SoundBank, error) {
	rd := &reader{r: src}

	var magic [4]byte
	rd.read(magic[:])
	if rd.err != nil {
		return nil, ErrIO("reading bank header: %v", rd.err)
	}
	if string(magic[:]) != magicSoundBank {
		return nil, ErrInvalidBank("bad magic %q", magic)
	}
	version := rd.u16()
	if version != wireVersion {
		return nil, ErrInvalidBank("unsupported bank version %d", version)
	}

	name := rd.str()
	numSounds := rd.u16()
	numTables := rd.u16()
	numCues := rd.u16()

	sounds := make([]Sound, numSounds)
	for i := range sounds {
		s, err := readSound(rd)
		if err != nil {
			return nil, err
		}
		sounds[i] = s
	}

	tables := make([]VariationTable, numTables)
	for i := range tables {
		t, err := readVariationTable(rd)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}

	cues := make([]CueData, numCues)
	for i := range cues {
		cues[i] = CueData{
			Name:        rd.str(),
			IsVariation: rd.u8() != 0,
		}
		if cues[i].IsVariation {
			cues[i].VariationRef = VariationTableIndex(rd.i32())
		} else {
			cues[i].SoundRef = SoundIndex(rd.i32())
		}
	}
	if rd.err != nil {
		return nil, ErrIO("reading bank %q: %v", name, rd.err)
	}

	bank := &SoundBank{Name: name, Cues: cues, Sounds: sounds, VariationTables: tables}
	if err := validateSoundBank(bank); err != nil {
		return nil, err
	}
	return bank, nil
}

func readSound(rd *reader) (Sound, error) {
	s := Sound{
		Flags:         SoundFlags(rd.u16()),
		Category:      CategoryIndex(rd.i32()),
		VolumeEncoded: rd.u8(),
		PitchCents:    rd.i16(),
		Priority:      rd.u8(),
	}
	numClips := rd.u16()
	s.Clips = make([]Clip, numClips)
	for i := range s.Clips {
		c, err := readClip(rd)
		if err != nil {
			return s, err
		}
		s.Clips[i] = c
	}
	numRPC := rd.u16()
	s.RPCCodes = make([]RPCIndex, numRPC)
	for i := range s.RPCCodes {
		s.RPCCodes[i] = RPCIndex(rd.i32())
	}
	numDSP := rd.u16()
	s.DSPCodes = make([]DSPIndex, numDSP)
	for i := range s.DSPCodes {
		s.DSPCodes[i] = DSPIndex(rd.i32())
	}
	return s, rd.err
}

func readClip(rd *reader) (Clip, error) {
	c := Clip{
		VolumeEncoded: rd.u8(),
		Filter:        rd.u8(),
		QFactor:       rd.u8(),
		FrequencyHz:   rd.u32(),
	}
	numRPC := rd.u16()
	c.RPCCodes = make([]RPCIndex, numRPC)
	for i := range c.RPCCodes {
		c.RPCCodes[i] = RPCIndex(rd.i32())
	}
	numEvents := rd.u16()
	c.Events = make([]Event, numEvents)
	for i := range c.Events {
		ev, err := readEvent(rd)
		if err != nil {
			return c, err
		}
		c.Events[i] = ev
	}
	return c, rd.err
}

func readEvent(rd *reader) (Event, error) {
	ev := Event{
		Type:         EventType(rd.u8()),
		TimestampMS:  rd.u16(),
		RandomOffset: rd.u16(),
		LoopCount:    rd.u8(),
		Frequency:    rd.u16(),
	}
	switch ev.Type.Base() {
	case EventPlayWave:
		numTracks := rd.u8()
		ev.Tracks = make([]WaveTrack, numTracks)
		for i := range ev.Tracks {
			ev.Tracks[i] = WaveTrack{
				WaveBank:  WaveBankIndex(rd.i32()),
				Wave:      WaveIndex(rd.i32()),
				Weight:    rd.u16(),
				PitchVar:  [2]int16{rd.i16(), rd.i16()},
				VolumeVar: [2]int8{int8(rd.u8()), int8(rd.u8())},
				FilterVar: [2]int8{int8(rd.u8()), int8(rd.u8())},
			}
		}
	case EventSetPitch, EventSetVolume:
		ev.UseRamp = rd.u8() != 0
		if ev.UseRamp {
			ev.Ramp = &RampSpec{
				Initial:      rd.f32(),
				InitialSlope: rd.f32(),
				SlopeDelta:   rd.f32(),
				DurationMS:   rd.u16(),
			}
		} else {
			ev.Equation = &EquationSpec{
				Flags: EquationFlags(rd.u8()),
				V1:    rd.f32(),
				V2:    rd.f32(),
			}
		}
	case EventMarker:
		ev.MarkerID = rd.u32()
	case EventStop:
		// no payload
	}
	return ev, rd.err
}

func readVariationTable(rd *reader) (VariationTable, error) {
	t := VariationTable{
		Policy:   SelectionPolicy(rd.u8()),
		Variable: VariableIndex(rd.i32()),
	}
	n := rd.u16()
	if n == 0 {
		return t, ErrInvalidBank("empty variation table")
	}
	t.Entries = make([]Variation, n)
	for i := range t.Entries {
		v := Variation{IsWave: rd.u8() != 0}
		if v.IsWave {
			v.WaveBank = WaveBankIndex(rd.i32())
			v.Wave = WaveIndex(rd.i32())
		} else {
			v.Sound = SoundIndex(rd.i32())
		}
		v.MinWeight = rd.f32()
		v.MaxWeight = rd.f32()
		t.Entries[i] = v
	}
	return t, rd.err
}

// validateSoundBank resolves every cross-reference once, in parallel across
// independent passes, and fails the whole load atomically on the first
// error (per spec.md §4.1 / §7: loader errors fail the entire bank load).
// A sound's category index is checked only for sign; its upper bound and the
// sound and clip RPC and DSP codes are not checked here (package cue
// bounds-checks them where it uses them).
func validateSoundBank(bank *SoundBank) error {
	var g errgroup.Group

	g.Go(func() error {
		for i, s := range bank.Sounds {
			if int(s.Category) < 0 {
				return ErrInvalidBank("sound %d: negative category index", i)
			}
			for ci, c := range s.Clips {
				for ei, ev := range c.Events {
					if err := validateEvent(ev, len(bank.Sounds)); err != nil {
						return ErrInvalidBank("sound %d clip %d event %d: %v", i, ci, ei, err)
					}
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, t := range bank.VariationTables {
			if len(t.Entries) == 0 {
				return ErrInvalidBank("variation table %d: zero entries", i)
			}
			for _, e := range t.Entries {
				if !e.IsWave && (int(e.Sound) < 0 || int(e.Sound) >= len(bank.Sounds)) {
					return ErrInvalidBank("variation table %d: sound index %d out of range", i, e.Sound)
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, c := range bank.Cues {
			if c.IsVariation {
				if int(c.VariationRef) < 0 || int(c.VariationRef) >= len(bank.VariationTables) {
					return ErrInvalidBank("cue %d (%s): variation table index %d out of range", i, c.Name, c.VariationRef)
				}
			} else if int(c.SoundRef) < 0 || int(c.SoundRef) >= len(bank.Sounds) {
				return ErrInvalidBank("cue %d (%s): sound index %d out of range", i, c.Name, c.SoundRef)
			}
		}
		return nil
	})

	return g.Wait()
}

func validateEvent(ev Event, numSounds int) error {
	switch ev.Type.Base() {
	case EventPlayWave:
		if len(ev.Tracks) == 0 {
			return ErrInvalidBank("PlayWave event with no tracks")
		}
		for _, tr := range ev.Tracks {
			if int(tr.Wave) < 0 || int(tr.WaveBank) < 0 {
				return ErrInvalidBank("PlayWave track references negative wave/bank index")
			}
		}
	case EventSetPitch, EventSetVolume:
		if ev.UseRamp && ev.Ramp != nil {
			if !finite(ev.Ramp.Initial) || !finite(ev.Ramp.InitialSlope) || !finite(ev.Ramp.SlopeDelta) {
				return ErrInvalidBank("ramp with non-finite control value")
			}
		}
		if !ev.UseRamp && ev.Equation != nil {
			if !finite(ev.Equation.V1) || !finite(ev.Equation.V2) {
				return ErrInvalidBank("equation with non-finite control value")
			}
		}
	}
	return nil
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// ValidateRPC checks that points are strictly increasing in X and finite,
// matching the numerical rule in spec.md §4.3 ("curves with non-finite
// control points fail validation at load time").
func ValidateRPC(r RPC) error {
	if len(r.Points) == 0 {
		return ErrInvalidBank("RPC has no points")
	}
	for i, p := range r.Points {
		if !finite(p.X) || !finite(p.Y) {
			return ErrInvalidBank("RPC point %d: non-finite value", i)
		}
		if i > 0 && p.X <= r.Points[i-1].X {
			return ErrInvalidBank("RPC point %d: X not strictly increasing", i)
		}
	}
	return nil
}

// LoadEngineSchema reads the process-wide categories/variables/RPCs that
// precede any SoundBank, validating them with the same atomic-or-nothing
// discipline as LoadSoundBank.
func LoadEngineSchema(src io.Reader) (*Engine, error) {
	rd := &reader{r: src}
	numCats := rd.u16()
	numVars := rd.u16()
	numRPCs := rd.u16()

	cats := make([]Category, numCats)
	for i := range cats {
		cats[i] = Category{
			Name:             rd.str(),
			MaxInstances:     rd.u8(),
			FadeInMS:         rd.u16(),
			FadeOutMS:        rd.u16(),
			InstanceBehavior: InstanceBehavior(rd.u8()),
			Parent:           CategoryIndex(rd.i32()),
			VolumeEncoded:    rd.u8(),
			Visibility:       rd.u8(),
		}
	}

	vars := make([]Variable, numVars)
	for i := range vars {
		vars[i] = Variable{
			Name:    rd.str(),
			Access:  VariableAccess(rd.u8()),
			Initial: rd.f32(),
			Min:     rd.f32(),
			Max:     rd.f32(),
		}
	}

	rpcs := make([]RPC, numRPCs)
	for i := range rpcs {
		rpcs[i] = RPC{
			Variable:  VariableIndex(rd.i32()),
			Parameter: RPCParameter(rd.u16()),
			DSPParam:  DSPIndex(rd.i32()),
		}
		numPoints := rd.u16()
		rpcs[i].Points = make([]RPCPoint, numPoints)
		for j := range rpcs[i].Points {
			rpcs[i].Points[j] = RPCPoint{X: rd.f32(), Y: rd.f32(), Type: CurveType(rd.u8())}
		}
	}
	if rd.err != nil {
		return nil, ErrIO("reading engine schema: %v", rd.err)
	}

	e := &Engine{Categories: cats, Variables: vars, RPCs: rpcs}
	for i, c := range cats {
		if c.Parent != NoIndex && (int(c.Parent) < 0 || int(c.Parent) >= len(cats)) {
			return nil, ErrInvalidBank("category %d: parent index %d out of range", i, c.Parent)
		}
	}
	for i, v := range vars {
		if v.Min > v.Max {
			return nil, ErrInvalidBank("variable %d (%s): min %f > max %f", i, v.Name, v.Min, v.Max)
		}
	}
	for i, r := range rpcs {
		if int(r.Variable) < 0 || int(r.Variable) >= len(vars) {
			return nil, ErrInvalidBank("rpc %d: variable index %d out of range", i, r.Variable)
		}
		if err := ValidateRPC(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}
