package platform

import (
	"encoding/binary"
	"math"
	"testing"
)

type constSource struct{ l, r float32 }

func (c constSource) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = c.l, c.r
	}
}

func TestStreamReaderEncodesLittleEndianFloat32(t *testing.T) {
	r := NewStreamReader(constSource{l: 0.5, r: -0.25})
	buf := make([]byte, 16) // 2 frames * 2 channels * 4 bytes
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 16 {
		t.Fatalf("n = %d, want 16", n)
	}
	left := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	right := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	if left != 0.5 || right != -0.25 {
		t.Fatalf("decoded frame = (%v, %v), want (0.5, -0.25)", left, right)
	}
}
