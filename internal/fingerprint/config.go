// Package fingerprint implements the spectral-landmark fingerprinter and
// its embedded inverted index (C2 in spec §4.2), ported from the
// teacher's server/shazam package and generalized from uint32 song IDs
// to track UUIDs.
package fingerprint

// Config controls the spectrogram, peak-extraction, and hashing pipeline.
// Ported from the teacher's shazam.FingerprintConfig (server/shazam/config.go).
type Config struct {
	DSPRatio       int      // downsample factor applied to input audio
	WindowSize     int      // FFT window size in samples (power of 2)
	HopSize        int      // samples between successive FFT frames
	MaxFreqHz      float64  // low-pass cutoff before downsampling
	TargetZoneSize int      // number of neighboring peaks paired with each anchor
	FreqBands      [][2]int // (minBin, maxBin) pairs for peak extraction
}

// DefaultConfig returns the teacher's DefaultMusicConfig tuning: this
// system only ever fingerprints short music clips and full tracks, never
// long-form speech, so the audiobook variant (DefaultAudiobookConfig in
// the teacher) has no home here and was dropped (see SPEC_FULL.md §4.2).
func DefaultConfig() Config {
	return Config{
		DSPRatio:       4,
		WindowSize:     1024,
		HopSize:        512,
		MaxFreqHz:      5000,
		TargetZoneSize: 5,
		FreqBands: [][2]int{
			{0, 10}, {10, 20}, {20, 40},
			{40, 80}, {80, 160}, {160, 512},
		},
	}
}

// BucketMs is the single-hop granularity (spec §4.2) used when rounding
// query/db anchor-time deltas into a histogram bin: the duration in
// milliseconds of one FFT hop at the effective (downsampled) sample rate.
func (c Config) BucketMs(sourceRate int) float64 {
	effectiveRate := float64(sourceRate) / float64(c.DSPRatio)
	return float64(c.HopSize) / effectiveRate * 1000
}
