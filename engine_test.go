package soundrt

import (
	"testing"
	"time"

	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/wave"
)

func singleShotBank() *schema.SoundBank {
	return &schema.SoundBank{
		Name: "Test",
		Sounds: []schema.Sound{{
			Category:      0,
			VolumeEncoded: 180,
			Clips: []schema.Clip{{
				Events: []schema.Event{{
					Type:   schema.EventPlayWave,
					Tracks: []schema.WaveTrack{{WaveBank: 0, Wave: 0, Weight: 1}},
				}},
			}},
		}},
		Cues: []schema.CueData{{Name: "PlayOnce", SoundRef: 0}},
	}
}

func testEngineSchema() *schema.Engine {
	return &schema.Engine{
		Categories: []schema.Category{{Name: "Default", VolumeEncoded: 180, Parent: schema.NoIndex}},
	}
}

// TestEngineLoadAndPlayCue exercises the control surface without starting
// the platform audio backend (no real device in a test environment,
// matching the teacher's player_test.go, which never calls Play()).
func TestEngineLoadAndPlayCue(t *testing.T) {
	e := New(testEngineSchema(), WithSeed(1))
	e.LoadSoundBank("test", singleShotBank())

	mb := wave.NewMemoryBank("wb0")
	mb.AddWave([]float32{1, 1, 1, 1}, 1, 44100)
	e.LoadWaveBank(0, mb)

	events := e.Watch(8)

	c, err := e.PlayCue("test", "PlayOnce", 0)
	if err != nil {
		t.Fatalf("PlayCue: %v", err)
	}
	if c == nil {
		t.Fatal("expected a non-nil cue")
	}

	if got := e.LiveCount(0); got != 1 {
		t.Fatalf("LiveCount = %d, want 1", got)
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected early notification %v before any tick", ev.Kind)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestEngineUnknownBank(t *testing.T) {
	e := New(testEngineSchema())
	if _, err := e.PlayCue("missing", "PlayOnce", 0); err == nil {
		t.Fatal("expected an error playing from an unloaded bank")
	}
}

func TestEngineSetVariableRejectsReadOnly(t *testing.T) {
	es := testEngineSchema()
	es.Variables = []schema.Variable{{Name: "ReadOnlyVar", Access: schema.AccessReadOnly, Min: 0, Max: 1}}
	e := New(es)
	if err := e.SetVariable(0, 0.5); err == nil {
		t.Fatal("expected SetVariable to reject a read-only variable")
	}
}

func TestEngineWatchReceivesOnlyMostRecentListener(t *testing.T) {
	e := New(testEngineSchema())
	first := e.Watch(4)
	second := e.Watch(4)

	e.notifyQ.Publish(notify.Event{Kind: notify.KindCueStop})

	select {
	case <-first:
		t.Fatal("stale listener should not receive events after a later Watch call")
	default:
	}
	select {
	case ev := <-second:
		if ev.Kind != notify.KindCueStop {
			t.Fatalf("got kind %v, want CueStop", ev.Kind)
		}
	default:
		t.Fatal("expected the most recent listener to receive the event")
	}
}
