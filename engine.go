// Package soundrt is the top-level interactive audio cue runtime: it wires
// together the bank schema/loader, variable stores, RPC evaluator, cue
// state machine and mix driver behind the small control surface a game or
// application actually calls (LoadSoundBank, LoadWaveBank, PlayCue, StopCue,
// SetVariable, Watch). Internally it follows the same shape as the
// teacher's Player: one mutex guarding mutable engine state, a
// non-blocking event channel for Watch(), and a capability-injected
// platform backend so the core never touches the audio device directly.
package soundrt

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/soundrt/engine/internal/cue"
	"github.com/soundrt/engine/internal/effects"
	"github.com/soundrt/engine/internal/mixer"
	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/platform"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/variable"
	"github.com/soundrt/engine/internal/wave"
)

// Option configures an Engine at construction.
type Option func(*engineConfig)

type engineConfig struct {
	sampleRate int
	quantumMS  int
	seed       uint64
	logger     *slog.Logger
}

func defaultEngineConfig() engineConfig {
	return engineConfig{sampleRate: 44100, quantumMS: 10, seed: 1, logger: slog.Default()}
}

// WithSampleRate sets the output sample rate (default 44100).
func WithSampleRate(hz int) Option {
	return func(c *engineConfig) { c.sampleRate = hz }
}

// WithQuantumMS sets how often (ms) cues are ticked and RPCs re-evaluated.
func WithQuantumMS(ms int) Option {
	return func(c *engineConfig) { c.quantumMS = ms }
}

// WithSeed sets the deterministic RNG seed every cue's sub-stream derives
// from (§3 expansion: reproducible Play sequences for a fixed seed).
func WithSeed(seed uint64) Option {
	return func(c *engineConfig) { c.seed = seed }
}

// WithLogger overrides the engine's structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// Engine is the top-level, process-wide audio runtime. Exactly one Engine
// normally exists per process; it owns the engine-global category/variable/
// RPC schema, every loaded SoundBank and WaveBank, the cue Manager, the mix
// driver, and (once Start is called) the platform audio Output.
type Engine struct {
	mu sync.Mutex

	schema    *schema.Engine
	vars      *variable.Store
	notifyQ   *notify.Queue
	cues      *cue.Manager
	waveBanks *mixer.WaveBanks
	driver    *mixer.Driver
	output    *platform.Output

	sampleRate int
	log        *slog.Logger

	banks map[string]*schema.SoundBank
}

// New creates an Engine from a loaded engine schema (categories, variables,
// RPCs). Call LoadSoundBank/LoadWaveBank to populate content, then Start to
// begin driving the platform audio backend.
func New(es *schema.Engine, opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	vars := variable.New(es.Variables)
	nq := notify.NewQueue()
	cues := cue.NewManager(es, vars, nq, cfg.seed)
	waveBanks := mixer.NewWaveBanks()
	driver := mixer.NewDriver(cfg.sampleRate, cfg.quantumMS, es, cues, waveBanks)

	e := &Engine{
		schema:     es,
		vars:       vars,
		notifyQ:    nq,
		cues:       cues,
		waveBanks:  waveBanks,
		driver:     driver,
		sampleRate: cfg.sampleRate,
		log:        cfg.logger,
		banks:      make(map[string]*schema.SoundBank),
	}
	e.log.Info("engine created", slog.Int("sampleRateHz", cfg.sampleRate), slog.Int("quantumMS", cfg.quantumMS))
	return e
}

// Start opens the platform audio device and begins rendering. Calling
// Start twice without Stop returns an error.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output != nil {
		return errors.New("soundrt: engine already started")
	}
	out, err := platform.NewOutput(e.sampleRate, e.driver)
	if err != nil {
		e.log.Error("failed to start platform output", slog.Any("error", err))
		return err
	}
	e.output = out
	e.output.Play()
	e.log.Info("engine started")
	return nil
}

// Stop closes the platform audio device. The loaded banks and cue state
// are left intact; Start can be called again.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output == nil {
		return nil
	}
	err := e.output.Stop()
	e.output = nil
	e.log.Info("engine stopped")
	return err
}

// LoadSoundBank registers a decoded SoundBank under name, making its cues
// playable by PlayCue(name, cueName, ...). Loading the same name twice
// replaces the previous bank.
func (e *Engine) LoadSoundBank(name string, bank *schema.SoundBank) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.banks[name] = bank
	e.log.Info("sound bank loaded", slog.String("bank", name), slog.Int("cues", len(bank.Cues)))
	e.notifyQ.Publish(notify.Event{Kind: notify.KindWaveBankPrepared})
}

// LoadWaveBank installs a decoded wave.Bank at idx, so PlayWave events whose
// WaveTrack references idx can resolve a decoder. The root engine (not
// package wave or mixer) owns the mapping from on-disk wave bank identity to
// the schema.WaveBankIndex a SoundBank's tracks were compiled against.
func (e *Engine) LoadWaveBank(idx schema.WaveBankIndex, bank wave.Bank) {
	e.waveBanks.Set(idx, bank)
	e.log.Info("wave bank loaded", slog.Int("index", int(idx)), slog.String("bank", bank.Name()))
	e.notifyQ.Publish(notify.Event{Kind: notify.KindWaveBankPrepared})
}

// SoundBank looks up a previously loaded bank by name, or reports an error
// if none was loaded under that name.
func (e *Engine) SoundBank(name string) (*schema.SoundBank, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.banks[name]
	if !ok {
		return nil, schema.ErrNotFound("sound bank %q not loaded", name)
	}
	return b, nil
}

// PlayCue resolves cueName within the named bank and starts it.
// interactiveVar is passed through to variation tables using
// SelectInteractive; pass 0 if the cue doesn't use one.
func (e *Engine) PlayCue(bankName, cueName string, interactiveVar float32) (*cue.Cue, error) {
	bank, err := e.SoundBank(bankName)
	if err != nil {
		return nil, err
	}
	idx, err := bank.LookupCueByName(cueName)
	if err != nil {
		return nil, err
	}
	c, err := e.cues.Play(bank, idx, interactiveVar)
	if err != nil {
		e.log.Warn("play failed", slog.String("bank", bankName), slog.String("cue", cueName), slog.Any("error", err))
		return nil, err
	}
	e.log.Debug("cue started", slog.String("bank", bankName), slog.String("cue", cueName), slog.Uint64("id", c.ID))
	return c, nil
}

// StopCue requests c stop, fading out over its category's FadeOutMS unless
// immediate is true.
func (e *Engine) StopCue(c *cue.Cue, immediate bool) {
	e.cues.Stop(c, immediate)
}

// SetVariable writes an engine-global variable by handle. External callers
// are rejected from writing ReadOnly/Reserved variables, per the variable
// store's access-flag enforcement.
func (e *Engine) SetVariable(idx schema.VariableIndex, value float32) error {
	return e.vars.Set(idx, value, true)
}

// SetMasterVolume sets the linear master gain applied after every cue's
// category volume, RPC deltas and reverb bus (1.0 is unity).
func (e *Engine) SetMasterVolume(gain float64) {
	e.driver.SetMasterVolume(gain)
}

// Watch returns a channel receiving marker/cue-lifecycle notifications.
// Only the most recently returned channel is fed; call Watch once and keep
// draining it, mirroring the teacher's single-listener Watch() contract.
func (e *Engine) Watch(bufSize int) <-chan notify.Event {
	return e.notifyQ.Watch(bufSize)
}

// LiveCount reports how many cues currently occupy a category's instance
// slots.
func (e *Engine) LiveCount(idx schema.CategoryIndex) int {
	return e.cues.LiveCount(idx)
}

// AddBusEffect layers an additional effect onto the shared reverb/master
// bus, run after the reverb return. Use this to add the teacher's delay,
// chorus or distortion processors to the mix without the mixer needing to
// know about every effect type up front.
func (e *Engine) AddBusEffect(eff effects.Effector) {
	e.driver.AddBusEffect(eff)
}

// SetEQBand sets the master EQ5Band gain for band (0-4); 1.0 is unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
func (e *Engine) SetEQBand(band int, gain float32) {
	e.driver.SetEQBand(band, gain)
}

// EQBand returns the current master EQ5Band gain for band (0-4).
func (e *Engine) EQBand(band int) float32 {
	return e.driver.EQBand(band)
}
