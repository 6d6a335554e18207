// Package dedup implements content-based deduplication (C6 in spec
// §4.6): a coarse spectral-centroid signature used to recognize
// re-encodes of the same source audio that a byte-identical digest
// check would miss. No teacher or pack file implements spectral
// centroids directly; this builds on the same spectrogram machinery as
// internal/fingerprint, reducing each frame to a single centroid value
// instead of discrete peaks.
package dedup

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BucketCount is the fixed-length signature size: one centroid value
// per time bucket, so two tracks of different durations still produce
// comparable signatures (spec §4.6).
const BucketCount = 64

// SimilarityThreshold is the minimum cosine similarity between two
// signatures for tracks to be considered content-duplicates (spec
// §4.6 invariant).
const SimilarityThreshold = 0.85

// Signature is a track's coarse content fingerprint.
type Signature [BucketCount]float64

// BuildSignature reduces a magnitude spectrogram (as produced by
// internal/fingerprint's spectrogram step) to a fixed-length sequence
// of spectral centroids, bucketed evenly across time.
func BuildSignature(spect [][]float64) Signature {
	var sig Signature
	if len(spect) == 0 {
		return sig
	}

	centroids := make([]float64, len(spect))
	for i, frame := range spect {
		centroids[i] = spectralCentroid(frame)
	}

	framesPerBucket := float64(len(centroids)) / float64(BucketCount)
	for b := 0; b < BucketCount; b++ {
		start := int(float64(b) * framesPerBucket)
		end := int(float64(b+1) * framesPerBucket)
		if end > len(centroids) {
			end = len(centroids)
		}
		if start >= end {
			sig[b] = 0
			continue
		}

		var sum float64
		for i := start; i < end; i++ {
			sum += centroids[i]
		}
		sig[b] = sum / float64(end-start)
	}

	return sig
}

// spectralCentroid computes the magnitude-weighted mean frequency bin
// index of a single spectrogram frame.
func spectralCentroid(frame []float64) float64 {
	var weightedSum, magSum float64
	for i, mag := range frame {
		weightedSum += float64(i) * mag
		magSum += mag
	}
	if magSum == 0 {
		return 0
	}
	return weightedSum / magSum
}

// Similarity returns the cosine similarity between two signatures, in
// [-1, 1] (in practice [0, 1] since centroid values are non-negative).
func Similarity(a, b Signature) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// IsDuplicate reports whether two signatures are similar enough to be
// treated as the same underlying content.
func IsDuplicate(a, b Signature) bool {
	return Similarity(a, b) >= SimilarityThreshold
}

// Encode renders a signature as a compact comma-separated string, the
// form persisted in store.Track.DedupKey so candidates can be rebuilt
// and compared without recomputing the spectrogram.
func (s Signature) Encode() string {
	parts := make([]string, BucketCount)
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// DecodeSignature parses a signature previously rendered by Encode.
func DecodeSignature(raw string) (Signature, error) {
	var sig Signature
	if raw == "" {
		return sig, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != BucketCount {
		return sig, fmt.Errorf("dedup: expected %d signature buckets, got %d", BucketCount, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return sig, fmt.Errorf("dedup: invalid signature bucket %d: %w", i, err)
		}
		sig[i] = v
	}
	return sig, nil
}
