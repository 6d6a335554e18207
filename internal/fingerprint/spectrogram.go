package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"
)

// Peak is a significant spectrogram point: a time/frequency coordinate
// that becomes one landmark in a hash pair.
//
// Ported near-verbatim from the teacher's server/shazam/spectrogram.go.
type Peak struct {
	Freq float64 // Hz
	Time float64 // seconds
}

// spectrogram computes a magnitude spectrogram of pcm (already mono at
// sourceRate) using the config's low-pass/downsample/window/FFT pipeline.
func spectrogram(pcm []float64, sourceRate int, cfg Config) ([][]float64, error) {
	filtered := lowPassFilter(cfg.MaxFreqHz, float64(sourceRate), pcm)

	targetRate := sourceRate / cfg.DSPRatio
	downsampled, err := downsample(filtered, sourceRate, targetRate)
	if err != nil {
		return nil, err
	}
	filtered = nil

	window := make([]float64, cfg.WindowSize)
	for i := range window {
		theta := 2 * math.Pi * float64(i) / float64(cfg.WindowSize-1)
		window[i] = 0.5 - 0.5*math.Cos(theta) // hanning
	}

	spect := make([][]float64, 0, len(downsampled)/cfg.HopSize)
	for start := 0; start+cfg.WindowSize <= len(downsampled); start += cfg.HopSize {
		frame := make([]float64, cfg.WindowSize)
		copy(frame, downsampled[start:start+cfg.WindowSize])
		for j := range window {
			frame[j] *= window[j]
		}

		fftResult := fft(frame)
		magnitude := make([]float64, len(fftResult)/2)
		for j := range magnitude {
			magnitude[j] = cmplx.Abs(fftResult[j])
		}
		spect = append(spect, magnitude)
	}

	return spect, nil
}

// lowPassFilter is a first-order RC low-pass filter attenuating
// frequencies above cutoffFrequency.
func lowPassFilter(cutoffFrequency, sampleRate float64, input []float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoffFrequency)
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	out := make([]float64, len(input))
	var prev float64
	for i, x := range input {
		if i == 0 {
			out[i] = x * alpha
		} else {
			out[i] = alpha*x + (1-alpha)*prev
		}
		prev = out[i]
	}
	return out
}

// downsample averages non-overlapping windows of input to go from
// originalSampleRate to targetSampleRate.
func downsample(input []float64, originalSampleRate, targetSampleRate int) ([]float64, error) {
	if targetSampleRate <= 0 || originalSampleRate <= 0 {
		return nil, errors.New("sample rates must be positive")
	}
	if targetSampleRate > originalSampleRate {
		return nil, errors.New("target sample rate must be <= original sample rate")
	}

	ratio := originalSampleRate / targetSampleRate
	if ratio <= 0 {
		return nil, errors.New("invalid ratio calculated from sample rates")
	}

	out := make([]float64, 0, len(input)/ratio)
	for i := 0; i < len(input); i += ratio {
		end := i + ratio
		if end > len(input) {
			end = len(input)
		}
		var sum float64
		for j := i; j < end; j++ {
			sum += input[j]
		}
		out = append(out, sum/float64(end-i))
	}
	return out, nil
}

// extractPeaks finds, per frame, the strongest bin within each
// configured frequency band, keeping only bands whose peak exceeds the
// frame's average band magnitude.
func extractPeaks(spect [][]float64, audioDuration float64, sourceRate int, cfg Config) []Peak {
	if len(spect) < 1 {
		return []Peak{}
	}

	type bandMax struct {
		mag     float64
		freqIdx int
	}

	effectiveRate := float64(sourceRate) / float64(cfg.DSPRatio)
	freqResolution := effectiveRate / float64(cfg.WindowSize)
	frameDuration := audioDuration / float64(len(spect))
	halfWindow := cfg.WindowSize / 2

	var peaks []Peak
	for frameIdx, frame := range spect {
		var maxMags []float64
		var freqIndices []int

		for _, band := range cfg.FreqBands {
			hi := band[1]
			if hi > halfWindow {
				hi = halfWindow
			}
			if hi > len(frame) {
				hi = len(frame)
			}
			if band[0] >= hi {
				continue
			}

			var best bandMax
			for idx := band[0]; idx < hi; idx++ {
				if frame[idx] > best.mag {
					best = bandMax{frame[idx], idx}
				}
			}
			maxMags = append(maxMags, best.mag)
			freqIndices = append(freqIndices, best.freqIdx)
		}

		if len(maxMags) == 0 {
			continue
		}

		var sum float64
		for _, m := range maxMags {
			sum += m
		}
		avg := sum / float64(len(maxMags))

		for i, mag := range maxMags {
			if mag > avg {
				peaks = append(peaks, Peak{
					Time: float64(frameIdx) * frameDuration,
					Freq: float64(freqIndices[i]) * freqResolution,
				})
			}
		}
	}

	return peaks
}
