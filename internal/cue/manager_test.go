package cue

import (
	"testing"

	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/variable"
)

func singleShotSetup(t *testing.T, maxInstances uint8, behavior schema.InstanceBehavior, fadeOutMS uint16) (*Manager, *schema.SoundBank, *notify.Queue) {
	t.Helper()
	engine := &schema.Engine{
		Categories: []schema.Category{
			{Name: "Default", VolumeEncoded: 180, Parent: schema.NoIndex, MaxInstances: maxInstances, InstanceBehavior: behavior, FadeOutMS: fadeOutMS},
		},
	}
	bank := &schema.SoundBank{
		Name: "Test",
		Sounds: []schema.Sound{{
			Category:      0,
			VolumeEncoded: 180,
			Clips: []schema.Clip{{
				Events: []schema.Event{{
					Type:        schema.EventPlayWave,
					TimestampMS: 0,
					Tracks:      []schema.WaveTrack{{WaveBank: 0, Wave: 0, Weight: 1}},
				}},
			}},
		}},
		Cues: []schema.CueData{{Name: "PlayOnce", SoundRef: 0}},
	}
	nq := notify.NewQueue()
	gv := variable.New(nil)
	m := NewManager(engine, gv, nq, 1)
	return m, bank, nq
}

func TestSingleShotScenario(t *testing.T) {
	m, bank, nq := singleShotSetup(t, 0, schema.BehaviorFailNew, 0)
	ch := nq.Watch(16)

	c, err := m.Play(bank, 0, 0)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	plays := m.Tick(5)
	if len(plays[c]) != 1 {
		t.Fatalf("expected 1 wave request fired at t=0, got %d", len(plays[c]))
	}

	// Simulate the wave finishing after its duration, then advance past it.
	c.VoiceFinished()
	m.Tick(10)

	if m.LiveCount(0) != 0 {
		t.Fatalf("expected category live count 0 after cue finished, got %d", m.LiveCount(0))
	}

	stopCount := 0
	draining := true
	for draining {
		select {
		case ev := <-ch:
			if ev.Kind == notify.KindCueStop {
				stopCount++
			}
		default:
			draining = false
		}
	}
	if stopCount != 1 {
		t.Fatalf("expected exactly 1 CueStop notification, got %d", stopCount)
	}
}

func TestInstanceLimitFailNew(t *testing.T) {
	m, bank, _ := singleShotSetup(t, 2, schema.BehaviorFailNew, 0)

	if _, err := m.Play(bank, 0, 0); err != nil {
		t.Fatalf("play 1: %v", err)
	}
	if _, err := m.Play(bank, 0, 0); err != nil {
		t.Fatalf("play 2: %v", err)
	}
	_, err := m.Play(bank, 0, 0)
	if !schema.Is(err, schema.KindInstanceLimit) {
		t.Fatalf("play 3: expected InstanceLimit, got %v", err)
	}
	if m.LiveCount(0) != 2 {
		t.Fatalf("LiveCount = %d, want 2", m.LiveCount(0))
	}
}

func TestInstanceLimitReplaceOldestFadesEvicted(t *testing.T) {
	m, bank, _ := singleShotSetup(t, 2, schema.BehaviorReplaceOldest, 100)

	first, err := m.Play(bank, 0, 0)
	if err != nil {
		t.Fatalf("play 1: %v", err)
	}
	if _, err := m.Play(bank, 0, 0); err != nil {
		t.Fatalf("play 2: %v", err)
	}
	if _, err := m.Play(bank, 0, 0); err != nil {
		t.Fatalf("play 3: %v", err)
	}

	if m.LiveCount(0) != 2 {
		t.Fatalf("LiveCount = %d, want 2", m.LiveCount(0))
	}
	first.mu.Lock()
	state := first.State
	first.mu.Unlock()
	if state != StateStopping {
		t.Fatalf("expected evicted cue to be Stopping, got %v", state)
	}
}

func TestFadeOutOnStopHoldsForFullDuration(t *testing.T) {
	m, bank, nq := singleShotSetup(t, 0, schema.BehaviorFailNew, 100)
	ch := nq.Watch(4)

	c, err := m.Play(bank, 0, 0)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	c.VoiceFinished() // pretend the wave started by PlayWave already ended

	m.Stop(c, false)

	// Advance in 10ms steps; the cue must stay in Stopping for the full
	// 100ms fade.
	for i := 0; i < 9; i++ {
		m.Tick(10)
		c.mu.Lock()
		st := c.State
		c.mu.Unlock()
		if st != StateStopping {
			t.Fatalf("tick %d: cue left Stopping early (state=%v)", i, st)
		}
	}
	m.Tick(10) // total 100ms elapsed
	c.mu.Lock()
	st := c.State
	c.mu.Unlock()
	if st != StateStopped {
		t.Fatalf("expected Stopped after full fade duration, got %v", st)
	}

	select {
	case ev := <-ch:
		if ev.Kind != notify.KindCueStop {
			t.Fatalf("expected CueStop, got %v", ev.Kind)
		}
	default:
		t.Fatalf("expected a CueStop notification")
	}
}
