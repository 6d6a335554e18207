package fingerprint

import (
	"github.com/google/uuid"
)

const (
	maxFreqBits  = 9
	maxDeltaBits = 14
)

// Couple is one fingerprint hash's payload: the anchor time within its
// track plus the track's identity. Ported from the teacher's
// models.Couple, widened from a bare uint32 SongID to a uuid.UUID per
// the track-identifier decision in SPEC_FULL.md §9 (OQ-1) — the address
// encoding itself only ever carried (f1,f2,Δt), never identity, so it
// is untouched.
type Couple struct {
	AnchorTimeMs uint32
	TrackID      uuid.UUID
}

// Hash is one address->couple fingerprint entry.
type Hash struct {
	Address uint32
	Couple  Couple
}

// Fingerprint generates fingerprint hashes from a list of peaks for a
// single track. Ported from the teacher's shazam.Fingerprint.
func Fingerprint(peaks []Peak, trackID uuid.UUID, cfg Config) []Hash {
	hashes := make([]Hash, 0, len(peaks)*cfg.TargetZoneSize)

	for i, anchor := range peaks {
		for j := i + 1; j < len(peaks) && j <= i+cfg.TargetZoneSize; j++ {
			target := peaks[j]
			hashes = append(hashes, Hash{
				Address: createAddress(anchor, target),
				Couple: Couple{
					AnchorTimeMs: uint32(anchor.Time * 1000),
					TrackID:      trackID,
				},
			})
		}
	}

	return hashes
}

// createAddress packs an anchor/target peak pair into a single uint32
// key: 9 bits anchor frequency bin, 9 bits target frequency bin, 14 bits
// time delta in milliseconds. Ported unchanged from the teacher's
// shazam.createAddress.
func createAddress(anchor, target Peak) uint32 {
	anchorFreqBin := uint32(anchor.Freq / 10)
	targetFreqBin := uint32(target.Freq / 10)
	deltaMsRaw := uint32((target.Time - anchor.Time) * 1000)

	anchorFreqBits := anchorFreqBin & ((1 << maxFreqBits) - 1)
	targetFreqBits := targetFreqBin & ((1 << maxFreqBits) - 1)
	deltaBits := deltaMsRaw & ((1 << maxDeltaBits) - 1)

	return (anchorFreqBits << 23) | (targetFreqBits << 14) | deltaBits
}

// FingerprintPCM runs the full spectrogram -> peak -> hash pipeline over
// mono PCM samples already at sourceRate. This is the entry point the
// ingestion pipeline (C7) and the exact lane (C8) both call.
func FingerprintPCM(pcm []float64, sourceRate int, trackID uuid.UUID, cfg Config) ([]Hash, error) {
	spect, err := spectrogram(pcm, sourceRate, cfg)
	if err != nil {
		return nil, err
	}

	duration := float64(len(pcm)) / float64(sourceRate)
	peaks := extractPeaks(spect, duration, sourceRate, cfg)

	return Fingerprint(peaks, trackID, cfg), nil
}

// Spectrogram exposes the low-pass/downsample/window/FFT pipeline to
// other packages (the dedup package's spectral-centroid signature
// reuses it rather than duplicating the DSP chain).
func Spectrogram(pcm []float64, sourceRate int, cfg Config) ([][]float64, error) {
	return spectrogram(pcm, sourceRate, cfg)
}
