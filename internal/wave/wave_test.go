package wave

import (
	"io"
	"testing"
)

func TestMemoryBankRoundTrip(t *testing.T) {
	b := NewMemoryBank("Test")
	idx := b.AddWave([]float32{0, 1, 2, 3, 4, 5}, 1, 44100)

	dec, err := b.NewDecoder(idx)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if dec.Length() != 6 {
		t.Fatalf("Length = %d, want 6", dec.Length())
	}

	buf := make([]float32, 4)
	n, err := dec.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}

	n, err = dec.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF on final partial read, got %v", err)
	}
	if n != 2 {
		t.Fatalf("final read n = %d, want 2", n)
	}
}

func TestMemoryBankSeek(t *testing.T) {
	b := NewMemoryBank("Test")
	idx := b.AddWave([]float32{10, 20, 30, 40}, 1, 44100)
	dec, _ := b.NewDecoder(idx)

	if err := dec.Seek(2); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]float32, 2)
	n, err := dec.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read after seek: %v", err)
	}
	if n != 2 || buf[0] != 30 || buf[1] != 40 {
		t.Fatalf("Read after seek = %v, want [30 40]", buf[:n])
	}
}

func TestMemoryBankSeekOutOfRange(t *testing.T) {
	b := NewMemoryBank("Test")
	idx := b.AddWave([]float32{1, 2}, 1, 44100)
	dec, _ := b.NewDecoder(idx)
	if err := dec.Seek(99); err == nil {
		t.Fatalf("expected error seeking past end")
	}
}

func TestMemoryBankUnknownIndex(t *testing.T) {
	b := NewMemoryBank("Test")
	if _, err := b.NewDecoder(0); err == nil {
		t.Fatalf("expected error for wave index in empty bank")
	}
}

func TestMemoryBankStereo(t *testing.T) {
	b := NewMemoryBank("Test")
	idx := b.AddWave([]float32{1, -1, 2, -2, 3, -3}, 2, 48000)
	dec, _ := b.NewDecoder(idx)
	if dec.Channels() != 2 {
		t.Fatalf("Channels = %d, want 2", dec.Channels())
	}
	if dec.Length() != 3 {
		t.Fatalf("Length = %d, want 3 frames", dec.Length())
	}
}
