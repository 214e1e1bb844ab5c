// Command bankplay loads a sound bank and engine schema from disk and plays
// one named cue through the platform audio backend, printing marker/stop
// notifications as they arrive.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	soundrt "github.com/soundrt/engine"
	"github.com/soundrt/engine/internal/effects"
	"github.com/soundrt/engine/internal/notify"
	"github.com/soundrt/engine/internal/schema"
	"github.com/soundrt/engine/internal/wave"
)

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 44100, "output sample rate")
		enginePath  = flag.String("engine", "", "path to a compiled engine schema file (categories/variables/RPCs)")
		bankPath    = flag.String("bank", "", "path to a compiled sound bank file")
		cueName     = flag.String("cue", "", "name of the cue to play")
		volume      = flag.Float64("volume", 1.0, "master volume scalar")
		playSeconds = flag.Float64("seconds", 3, "how long to let playback run before exiting")
		delay       = flag.Bool("delay", false, "add a delay effect to the master bus")
		chorus      = flag.Bool("chorus", false, "add a chorus effect to the master bus")
		distortion  = flag.Bool("distortion", false, "add a distortion effect to the master bus")
		compress    = flag.Bool("compress", false, "add a compressor to the master bus")
	)
	flag.Parse()

	if strings.TrimSpace(*bankPath) == "" || strings.TrimSpace(*cueName) == "" {
		log.Fatal("bankplay: -bank and -cue are required")
	}

	es, err := loadEngineSchema(*enginePath)
	if err != nil {
		log.Fatal(err)
	}
	bank, err := loadSoundBank(*bankPath)
	if err != nil {
		log.Fatal(err)
	}

	eng := soundrt.New(es, soundrt.WithSampleRate(*sampleRate))
	eng.LoadSoundBank("bank", bank)
	eng.LoadWaveBank(0, demoToneBank(*sampleRate))
	eng.SetMasterVolume(*volume)

	if *delay {
		eng.AddBusEffect(effects.NewDelay(*sampleRate, 250, 0.4, 0.2, 0.3))
	}
	if *chorus {
		eng.AddBusEffect(effects.NewChorus(*sampleRate, 15, 0.3, 3, 1.5, 0.4))
	}
	if *distortion {
		eng.AddBusEffect(effects.NewDistortion(*sampleRate, 4, 0.5, 8000))
	}
	if *compress {
		eng.AddBusEffect(effects.NewCompressor(*sampleRate, -20, 4, 5, 100, 6))
	}

	events := eng.Watch(16)
	if err := eng.Start(); err != nil {
		log.Fatal(err)
	}
	defer eng.Stop()

	if _, err := eng.PlayCue("bank", *cueName, 0); err != nil {
		log.Fatal(err)
	}

	deadline := time.After(time.Duration(*playSeconds * float64(time.Second)))
	for {
		select {
		case ev := <-events:
			fmt.Printf("%s cue=%d marker=%d\n", ev.Kind, ev.CueID, ev.MarkerID)
			if ev.Kind == notify.KindCueStop {
				return
			}
		case <-deadline:
			return
		}
	}
}

func loadEngineSchema(path string) (*schema.Engine, error) {
	if strings.TrimSpace(path) == "" {
		return &schema.Engine{Categories: []schema.Category{{Name: "Default", VolumeEncoded: 180, Parent: schema.NoIndex}}}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return schema.LoadEngineSchema(f)
}

func loadSoundBank(path string) (*schema.SoundBank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return schema.LoadSoundBank(f)
}

// demoToneBank synthesizes a one-second 440Hz tone as wave index 0 of a
// fresh in-memory bank, standing in for a real decoded .wav asset; decoding
// on-disk wave formats is out of scope (spec.md Non-goals).
func demoToneBank(sampleRate int) *wave.MemoryBank {
	mb := wave.NewMemoryBank("demo")
	n := sampleRate
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	mb.AddWave(samples, 1, sampleRate)
	return mb
}
