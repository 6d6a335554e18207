package fingerprint

import (
	"math"
	"testing"
)

func TestDownsampleRatio(t *testing.T) {
	input := make([]float64, 100)
	for i := range input {
		input[i] = float64(i)
	}

	out, err := downsample(input, 100, 10)
	if err != nil {
		t.Fatalf("downsample failed: %v", err)
	}
	if len(out) != 10 {
		t.Fatalf("len(out) = %d, want 10", len(out))
	}
}

func TestDownsampleRejectsUpsample(t *testing.T) {
	_, err := downsample([]float64{1, 2, 3}, 10, 20)
	if err == nil {
		t.Fatal("expected error when target rate exceeds original rate")
	}
}

func TestLowPassFilterPreservesLength(t *testing.T) {
	input := make([]float64, 50)
	out := lowPassFilter(5000, 44100, input)
	if len(out) != len(input) {
		t.Errorf("len(out) = %d, want %d", len(out), len(input))
	}
}

func TestExtractPeaksEmptySpectrogram(t *testing.T) {
	peaks := extractPeaks(nil, 1.0, 44100, DefaultConfig())
	if len(peaks) != 0 {
		t.Errorf("expected no peaks for empty spectrogram, got %d", len(peaks))
	}
}

func TestSpectrogramProducesFrames(t *testing.T) {
	cfg := DefaultConfig()
	sourceRate := 44100
	samples := make([]float64, sourceRate) // 1 second
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / float64(sourceRate))
	}

	spect, err := spectrogram(samples, sourceRate, cfg)
	if err != nil {
		t.Fatalf("spectrogram failed: %v", err)
	}
	if len(spect) == 0 {
		t.Fatal("expected at least one frame")
	}
	for _, frame := range spect {
		if len(frame) != cfg.WindowSize/2 {
			t.Errorf("frame length = %d, want %d", len(frame), cfg.WindowSize/2)
		}
	}
}
