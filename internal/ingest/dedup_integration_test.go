package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/MacPhobos/audio-ident-sub001/internal/dedup"
	"github.com/MacPhobos/audio-ident-sub001/internal/fingerprint"
	"github.com/MacPhobos/audio-ident-sub001/internal/store"
)

func openTestPipelineStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// flatSpectrogram builds a trivial spectrogram whose every frame is
// identical, so BuildSignature produces the same signature regardless of
// frame count — enough to exercise the duration-filtered comparison loop
// without needing a real decode.
func flatSpectrogram(frames, bins int, fill float64) [][]float64 {
	spect := make([][]float64, frames)
	for i := range spect {
		frame := make([]float64, bins)
		for j := range frame {
			frame[j] = fill
		}
		spect[i] = frame
	}
	return spect
}

func TestRunContentDedupFindsDuplicateWithinDurationTolerance(t *testing.T) {
	tracks := openTestPipelineStore(t)
	ctx := context.Background()

	sig := dedup.BuildSignature(flatSpectrogram(100, 32, 1.0))
	existing := &store.Track{
		ID:            uuid.New(),
		Title:         "Original",
		Artist:        "Artist",
		ContentDigest: "digest-original",
		DurationMs:    60000,
		DedupKey:      sig.Encode(),
	}
	if err := tracks.Insert(ctx, existing); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p := &Pipeline{
		tracks: tracks,
		cfg: Config{
			DedupDurationTolerance: 0.1,
			FingerprintConfig:      fingerprint.DefaultConfig(),
		},
	}

	// re-use the same spectrogram-equivalent PCM by calling BuildSignature
	// directly rather than routing through the full DSP chain (which needs
	// ffmpeg-decoded PCM); runContentDedup's own spectrogram step is
	// exercised separately by internal/fingerprint and internal/dedup's
	// own unit tests.
	isDup, dupID, _, _, _, err := p.runContentDedupFromSignature(ctx, sig, 60.5)
	if err != nil {
		t.Fatalf("runContentDedupFromSignature failed: %v", err)
	}
	if !isDup {
		t.Fatal("expected a duplicate match within duration tolerance")
	}
	if dupID != existing.ID {
		t.Errorf("matched track = %v, want %v", dupID, existing.ID)
	}
}

func TestRunContentDedupSkipsOutOfToleranceDuration(t *testing.T) {
	tracks := openTestPipelineStore(t)
	ctx := context.Background()

	sig := dedup.BuildSignature(flatSpectrogram(100, 32, 1.0))
	existing := &store.Track{
		ID:            uuid.New(),
		Title:         "Original",
		ContentDigest: "digest-original",
		DurationMs:    60000,
		DedupKey:      sig.Encode(),
	}
	if err := tracks.Insert(ctx, existing); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p := &Pipeline{
		tracks: tracks,
		cfg: Config{
			DedupDurationTolerance: 0.1,
			FingerprintConfig:      fingerprint.DefaultConfig(),
		},
	}

	isDup, _, _, _, _, err := p.runContentDedupFromSignature(ctx, sig, 300)
	if err != nil {
		t.Fatalf("runContentDedupFromSignature failed: %v", err)
	}
	if isDup {
		t.Fatal("expected no match: candidate duration is far outside tolerance")
	}
}
