package fingerprint

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestFFTConstantSignal(t *testing.T) {
	n := 8
	input := make([]float64, n)
	for i := range input {
		input[i] = 1.0
	}

	out := fft(input)
	if len(out) != n {
		t.Fatalf("len(out) = %d, want %d", len(out), n)
	}

	// DC bin should carry the full sum; all other bins should be ~0.
	if math.Abs(real(out[0])-float64(n)) > 1e-9 {
		t.Errorf("DC bin = %v, want %v", out[0], n)
	}
	for i := 1; i < n; i++ {
		if cmplx.Abs(out[i]) > 1e-9 {
			t.Errorf("bin %d = %v, want ~0", i, out[i])
		}
	}
}

func TestFFTSingleTone(t *testing.T) {
	n := 8
	input := make([]float64, n)
	for i := range input {
		input[i] = math.Cos(2 * math.Pi * float64(i) / float64(n))
	}

	out := fft(input)
	// energy should concentrate at bin 1 and bin n-1
	if cmplx.Abs(out[1]) < 1.0 {
		t.Errorf("bin 1 magnitude = %v, expected strong tone", cmplx.Abs(out[1]))
	}
	for i := 2; i < n-1; i++ {
		if cmplx.Abs(out[i]) > cmplx.Abs(out[1]) {
			t.Errorf("bin %d magnitude exceeds the tone bin", i)
		}
	}
}
