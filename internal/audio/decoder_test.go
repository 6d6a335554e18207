package audio

import (
	"math"
	"testing"
)

func TestPCMDurationSeconds(t *testing.T) {
	samples := make([]float32, 16000*3) // 3 seconds at 16kHz
	got := PCMDurationSeconds(samples, 16000)
	if math.Abs(got-3.0) > 1e-9 {
		t.Errorf("duration = %v, want 3.0", got)
	}
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	want := []float32{0, 0.5, -0.5, 1, -1}
	raw := make([]byte, 0, len(want)*4)
	for _, v := range want {
		bits := math.Float32bits(v)
		raw = append(raw, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}

	got := BytesToFloat32(raw)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCastToS16Clamps(t *testing.T) {
	in := []float32{0, 1, -1, 2, -2}
	out := CastToS16(in)
	want := []int16{0, 32767, -32768, 32767, -32768}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestTruncateToDuration(t *testing.T) {
	samples := make([]float32, 48000*10)
	got := TruncateToDuration(samples, 48000, 5)
	if len(got) != 48000*5 {
		t.Errorf("len = %d, want %d", len(got), 48000*5)
	}

	short := make([]float32, 48000*2)
	got2 := TruncateToDuration(short, 48000, 5)
	if len(got2) != len(short) {
		t.Errorf("should not extend short input: len = %d, want %d", len(got2), len(short))
	}
}
